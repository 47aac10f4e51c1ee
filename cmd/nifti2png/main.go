package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/ffmpego"

	_ "github.com/carbocation/ctlesion/compileinfoprint"
	"github.com/carbocation/ctlesion/overlay"
	"github.com/carbocation/ctlesion/volume"
)

func main() {
	var filename, output, plane, movie string
	var level, width, fps float64
	var smooth bool

	flag.StringVar(&filename, "file", "", "Name of .nii or .nii.gz file to convert to PNGs. May be a gs:// URL.")
	flag.StringVar(&output, "out", "", "Name of folder where the pngs will be emitted. Filenames will be {orig_filename}.{plane}{index}.png.")
	flag.StringVar(&plane, "plane", "axial", "Which planes to emit: axial or sagittal.")
	flag.Float64Var(&level, "level", volume.BrainWindow.Level, "Window level in HU.")
	flag.Float64Var(&width, "width", volume.BrainWindow.Width, "Window width in HU.")
	flag.BoolVar(&smooth, "smooth", false, "Apply the viewer's (1,3,3) median filter before rendering.")
	flag.StringVar(&movie, "movie", "", "(Optional) Path of an .mp4 that scrolls through the planes. Requires ffmpeg on the PATH.")
	flag.Float64Var(&fps, "fps", 10, "Frames per second of the --movie.")
	flag.Parse()

	if filename == "" || (output == "" && movie == "") {
		flag.PrintDefaults()
		os.Exit(1)
	}

	axis, err := volume.ParseAxis(plane)
	if err != nil {
		logrus.Fatalln(err)
	}

	prefix := filepath.Base(filename)
	prefix = strings.TrimSuffix(prefix, ".nii.gz")
	prefix = strings.TrimSuffix(prefix, ".nii")

	if output != "" {
		if err := os.MkdirAll(output, os.ModePerm); err != nil {
			logrus.Fatalln(err)
		}
	}

	ctx := context.Background()

	var sclient *storage.Client
	if strings.HasPrefix(filename, "gs://") {
		sclient, err = storage.NewClient(ctx)
		if err != nil {
			logrus.Fatalln(err)
		}
		defer sclient.Close()
	}

	v, err := volume.Load(ctx, filename, volume.LoadOptions{StorageClient: sclient})
	if err != nil {
		logrus.Fatalln(err)
	}

	if smooth {
		v, err = volume.MedianFilter(ctx, v, volume.Footprint{Z: 1, Y: 3, X: 3}, runtime.NumCPU())
		if err != nil {
			logrus.Fatalln(err)
		}
	}

	sum := v.Summary()
	logrus.WithFields(logrus.Fields{
		"min":  sum.Min,
		"max":  sum.Max,
		"mean": sum.Mean,
		"sd":   sum.SD,
	}).Infoln("Intensities")

	frames, err := nifti2png(v, axis, volume.Window{Level: level, Width: width}, prefix, output)
	if err != nil {
		logrus.Fatalln(err)
	}

	if movie != "" {
		if err := makeOneMPEG(frames, movie, fps); err != nil {
			logrus.Fatalln(err)
		}
	}
}

// nifti2png renders one windowed image per plane along axis. When output is
// set each is written there as a PNG and described by a TSV row.
func nifti2png(v *volume.Volume, axis volume.Axis, window volume.Window, prefix, output string) ([]image.Image, error) {
	labels := overlay.DefaultLabels()
	frames := make([]image.Image, 0, v.Extent(axis))

	if output != "" {
		fmt.Printf("image\tplane\tindex\trow_spacing\tcol_spacing\n")
	}

	for i := 0; i < v.Extent(axis); i++ {
		p := v.Plane(axis, i)

		img, err := labels.RenderPlane(p, window)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)

		if output == "" {
			continue
		}

		name := fmt.Sprintf("%s.%s%04d", prefix, axis, i)
		f, err := os.Create(filepath.Join(output, name+".png"))
		if err != nil {
			return nil, err
		}

		if err := overlay.EncodePNG(f, img); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}

		// Emit metadata about each PNG
		fmt.Printf("%s\t%s\t%d\t%g\t%g\n", name, axis, i, p.RowSpacing, p.ColSpacing)
	}

	return frames, nil
}

func makeOneMPEG(frames []image.Image, outName string, fps float64) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to write")
	}

	b := frames[0].Bounds()
	vw, err := ffmpego.NewVideoWriter(outName, b.Dx(), b.Dy(), fps)
	if err != nil {
		return err
	}

	for _, frame := range frames {
		if err := vw.WriteFrame(frame); err != nil {
			vw.Close()
			return err
		}
	}

	return vw.Close()
}
