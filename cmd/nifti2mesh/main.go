// nifti2mesh writes an STL surface for a CT volume: the bone overview by
// default, or the segmented lesion when an annotation file is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/carbocation/ctlesion/annotation"
	_ "github.com/carbocation/ctlesion/compileinfoprint"
	"github.com/carbocation/ctlesion/mesh"
	"github.com/carbocation/ctlesion/segment"
	"github.com/carbocation/ctlesion/volume"
)

// Annotation is the file form of a finished annotation. JSON is valid YAML, so
// either may be used.
//
//	contour: "M1,1L9,1L9,9L1,9Z"
//	height: [2, 14]
//	threshold: {min: 50, max: 100}
type Annotation struct {
	Contour   string            `yaml:"contour"`
	Height    [2]float64        `yaml:"height"`
	Threshold segment.Threshold `yaml:"threshold"`
}

func main() {
	var filename, output, annotationPath string
	var level float64
	var step int

	flag.StringVar(&filename, "file", "", "Name of .nii or .nii.gz file. May be a gs:// URL.")
	flag.StringVar(&output, "out", "", "Path of the STL file to write.")
	flag.StringVar(&annotationPath, "annotation", "", "(Optional) YAML or JSON file with contour, height and threshold. If set, the lesion is meshed instead of the overview.")
	flag.Float64Var(&level, "level", mesh.OverviewLevel, "HU isosurface of the overview mesh.")
	flag.IntVar(&step, "step", 0, "(Optional) Marching cubes step in voxels. Defaults to the viewer's step for the chosen mesh.")
	flag.Parse()

	if filename == "" || output == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := logrus.New()
	ctx := context.Background()

	var sclient *storage.Client
	var err error
	if strings.HasPrefix(filename, "gs://") {
		sclient, err = storage.NewClient(ctx)
		if err != nil {
			log.Fatalln(err)
		}
		defer sclient.Close()
	}

	raw, err := volume.Load(ctx, filename, volume.LoadOptions{StorageClient: sclient, Log: log})
	if err != nil {
		log.Fatalln(err)
	}

	smoothed, err := volume.MedianFilter(ctx, raw, volume.Footprint{Z: 1, Y: 3, X: 3}, runtime.NumCPU())
	if err != nil {
		log.Fatalln(err)
	}

	ext := &mesh.Extractor{Log: log, Workers: runtime.NumCPU()}

	var res mesh.Result
	if annotationPath == "" {
		if step <= 0 {
			step = mesh.OverviewStep
		}
		res = ext.FromVolume(smoothed, level, step)
	} else {
		anno, err := readAnnotation(annotationPath)
		if err != nil {
			log.Fatalln(err)
		}
		if step <= 0 {
			step = mesh.LesionStep
		}

		engine := &segment.Engine{Log: log}
		seg, err := segmentLesion(engine, smoothed, anno)
		if err != nil {
			log.Fatalln(err)
		}

		if values, err := roiValues(engine, smoothed, anno); err == nil && len(values) > 0 {
			fmt.Fprintln(os.Stderr, "HU within the annotated region:")
			if err := histogram.Fprint(os.Stderr, histogram.Hist(25, values), histogram.Linear(40)); err != nil {
				log.Warnln(err)
			}
		}
		if seg.Absent() {
			log.Fatalln("No lesion:", seg.Absence)
		}

		fmt.Printf("voxels\tvolume_mm3\tvolume_ml\ttop\tbottom\timpression\n")
		fmt.Printf("%d\t%.1f\t%.3f\t%d\t%d\t%s\n", seg.VoxelCount, seg.VolumeMM3, seg.VolumeML(), seg.Top, seg.Bottom, seg.Impression)

		res = ext.FromMask(ctx, seg.Mask, smoothed.Spacing, step, mesh.LesionSmoothing)
	}

	if res.Absent {
		log.Fatalln("No surface:", res.Reason)
	}

	if err := writeSTL(output, res); err != nil {
		log.Fatalln(err)
	}
}

func readAnnotation(path string) (Annotation, error) {
	var out Annotation

	data, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parsing %s: %w", path, err)
	}

	return out, nil
}

func segmentLesion(engine *segment.Engine, smoothed *volume.Volume, anno Annotation) (segment.Result, error) {
	var store annotation.Store
	if err := store.SetContour(anno.Contour); err != nil {
		return segment.Result{}, err
	}
	store.SetHeightRange(anno.Height[0], anno.Height[1])

	return engine.Segment(smoothed, &store, anno.Threshold), nil
}

// roiValues are the smoothed intensities inside the annotated prism.
func roiValues(engine *segment.Engine, smoothed *volume.Volume, anno Annotation) ([]float64, error) {
	points, _, err := annotation.ParsePath(anno.Contour)
	if err != nil {
		return nil, err
	}

	region, err := engine.Region(smoothed, points, annotation.HeightRange{Y0: anno.Height[0], Y1: anno.Height[1]})
	if err != nil {
		return nil, err
	}

	return segment.ROIIntensities(smoothed, region), nil
}

func writeSTL(path string, res mesh.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := mesh.WriteSTL(f, res.Mesh); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
