package volume

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Footprint is the extent of a median window along (depth, height, width).
// Each extent must be a positive odd number.
type Footprint struct {
	Z, Y, X int
}

func (f Footprint) Valid() error {
	for _, v := range [3]int{f.Z, f.Y, f.X} {
		if v < 1 || v%2 == 0 {
			return fmt.Errorf("footprint %+v: extents must be positive odd numbers", f)
		}
	}

	return nil
}

func (f Footprint) Size() int {
	return f.Z * f.Y * f.X
}

// MedianFilter returns a new volume where every voxel is the median of its
// footprint neighborhood. Neighbors beyond the edge repeat the nearest edge
// voxel. Output slices are computed concurrently; workers <= 0 uses every CPU.
func MedianFilter(ctx context.Context, v *Volume, fp Footprint, workers int) (*Volume, error) {
	if err := fp.Valid(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := v.EmptyLike()
	rz, ry, rx := fp.Z/2, fp.Y/2, fp.X/2

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for z := 0; z < v.Depth; z++ {
		z := z
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			window := make([]float32, fp.Size())
			for y := 0; y < v.Height; y++ {
				for x := 0; x < v.Width; x++ {
					n := 0
					for dz := -rz; dz <= rz; dz++ {
						zz := clamp(z+dz, 0, v.Depth-1)
						for dy := -ry; dy <= ry; dy++ {
							yy := clamp(y+dy, 0, v.Height-1)
							row := v.Index(zz, yy, 0)
							for dx := -rx; dx <= rx; dx++ {
								window[n] = v.Data[row+clamp(x+dx, 0, v.Width-1)]
								n++
							}
						}
					}
					out.Set(z, y, x, selectMedian(window))
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// selectMedian partially reorders buf and returns its middle element.
func selectMedian(buf []float32) float32 {
	k := len(buf) / 2
	lo, hi := 0, len(buf)-1

	for lo < hi {
		pivot := buf[(lo+hi)/2]
		i, j := lo, hi
		for i <= j {
			for buf[i] < pivot {
				i++
			}
			for buf[j] > pivot {
				j--
			}
			if i <= j {
				buf[i], buf[j] = buf[j], buf[i]
				i++
				j--
			}
		}
		if k <= j {
			hi = j
		} else if k >= i {
			lo = i
		} else {
			break
		}
	}

	return buf[k]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
