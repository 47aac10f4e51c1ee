package volume

import (
	"context"
	"fmt"
	"math"
	"os"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ctlesion"
	"github.com/carbocation/pfx"
	"github.com/henghuang/nifti"
	"github.com/sirupsen/logrus"
)

type LoadOptions struct {
	// StorageClient is required only for gs:// paths.
	StorageClient *storage.Client
	Log           logrus.FieldLogger
}

// Load reads a NIfTI-1 volume (.nii or .nii.gz, local or gs://) into the
// canonical layout: depth follows the file's k axis, height its i axis
// flipped, and width its j axis. Spacing is the absolute diagonal of the sform
// affine when the file declares one and the absolute pixdim otherwise,
// reordered to match.
func Load(ctx context.Context, path string, opts LoadOptions) (out *Volume, err error) {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	local, cleanup, err := ctlesion.StageLocalCopy(ctx, path, opts.StorageClient)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// The reader does not report i/o problems, so check what we can up front.
	if _, err := os.Stat(local); err != nil {
		return nil, pfx.Err(err)
	}

	// Malformed files panic inside the reader
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = pfx.Err(fmt.Errorf("%s: could not parse NIfTI: %v", path, r))
		}
	}()

	var hdr nifti.Nifti1Header
	hdr.LoadHeader(local)

	var img nifti.Nifti1Image
	img.LoadImage(local, true)

	dims := img.GetDims()
	if len(dims) < 3 {
		return nil, fmt.Errorf("%s: expected at least 3 dimensions, got %d", path, len(dims))
	}
	im, jm, km := dims[0], dims[1], dims[2]
	if im <= 0 || jm <= 0 || km <= 0 {
		return nil, fmt.Errorf("%s: degenerate dimensions %dx%dx%d", path, im, jm, km)
	}
	if len(dims) > 3 && dims[3] > 1 {
		log.WithField("path", path).WithField("frames", dims[3]).Warnln("Volume has more than one frame; using the first")
	}

	di, dj, dk := axisSpacing(hdr)
	spacing := [3]float64{
		checkedSpacing(log, path, "z", dk),
		checkedSpacing(log, path, "y", di),
		checkedSpacing(log, path, "x", dj),
	}

	out, err = New(km, im, jm, spacing)
	if err != nil {
		return nil, pfx.Err(err)
	}

	decode := sampleDecoder(hdr)
	for z := 0; z < km; z++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for h := 0; h < im; h++ {
			i := im - 1 - h
			for w := 0; w < jm; w++ {
				out.Set(z, h, w, decode(img.GetAt(i, w, z, 0)))
			}
		}
	}

	log.WithFields(logrus.Fields{
		"path":    path,
		"shape":   out.Shape(),
		"spacing": out.Spacing,
		"sform":   hdr.SformCode > 0,
	}).Infoln("Loaded volume")

	return out, nil
}

// axisSpacing returns the voxel size along the file's i, j and k axes.
func axisSpacing(hdr nifti.Nifti1Header) (di, dj, dk float64) {
	if hdr.SformCode > 0 {
		return float64(hdr.SrowX[0]), float64(hdr.SrowY[1]), float64(hdr.SrowZ[2])
	}
	return float64(hdr.Pixdim[1]), float64(hdr.Pixdim[2]), float64(hdr.Pixdim[3])
}

// NIfTI datatype codes whose samples the reader hands back with the wrong
// sign or as float bits.
const (
	dtInt16  = 4
	dtInt32  = 8
	dtInt8   = 256
	dtUint32 = 768
)

// sampleDecoder undoes the reader's unsigned/float reinterpretation of integer
// samples and applies scl_slope/scl_inter.
func sampleDecoder(hdr nifti.Nifti1Header) func(float32) float32 {
	slope, inter := hdr.SclSlope, hdr.SclInter
	if slope == 0 || math.IsNaN(float64(slope)) {
		slope, inter = 1, 0
	}

	var raw func(float32) float32
	switch hdr.Datatype {
	case dtInt8:
		raw = func(v float32) float32 { return float32(int8(uint8(v))) }
	case dtInt16:
		raw = func(v float32) float32 { return float32(int16(uint16(v))) }
	case dtInt32:
		raw = func(v float32) float32 { return float32(int32(math.Float32bits(v))) }
	case dtUint32:
		raw = func(v float32) float32 { return float32(math.Float32bits(v)) }
	default:
		raw = func(v float32) float32 { return v }
	}

	return func(v float32) float32 {
		return raw(v)*slope + inter
	}
}

func checkedSpacing(log logrus.FieldLogger, path, axis string, v float64) float64 {
	v = math.Abs(v)
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		log.WithFields(logrus.Fields{"path": path, "axis": axis, "spacing": v}).Warnln("Invalid voxel spacing, assuming 1mm")
		return 1
	}

	return v
}
