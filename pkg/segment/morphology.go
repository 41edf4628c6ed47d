package segment

import (
	"image"

	"invasiondepth/internal/models"
)

// Dilate grows the mask by one pixel along the 4-connected neighborhood
func Dilate(mask *models.Mask) *models.Mask {
	out := models.NewMask(mask.Width, mask.Height)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) {
				out.Set(x, y, true)
				continue
			}
			for _, d := range neighbors4 {
				if mask.At(x+d.X, y+d.Y) {
					out.Set(x, y, true)
					break
				}
			}
		}
	}
	return out
}

// Erode shrinks the mask by one pixel along the 4-connected neighborhood.
// Pixels outside the image count as background, so foreground touching the
// border erodes too.
func Erode(mask *models.Mask) *models.Mask {
	out := models.NewMask(mask.Width, mask.Height)
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !mask.At(x, y) {
				continue
			}
			keep := true
			for _, d := range neighbors4 {
				if !mask.At(x+d.X, y+d.Y) {
					keep = false
					break
				}
			}
			out.Set(x, y, keep)
		}
	}
	return out
}

// Close dilates then erodes the mask n times each, merging fragments closer
// than about 2n pixels
func Close(mask *models.Mask, n int) *models.Mask {
	out := mask.Clone()
	for i := 0; i < n; i++ {
		out = Dilate(out)
	}
	for i := 0; i < n; i++ {
		out = Erode(out)
	}
	return out
}

// FillHoles sets every background pixel that cannot reach the image border
// through 4-connected background
func FillHoles(mask *models.Mask) *models.Mask {
	w, h := mask.Width, mask.Height
	outside := make([]bool, w*h)
	queue := make([]image.Point, 0, 2*(w+h))

	seed := func(x, y int) {
		if !mask.At(x, y) && !outside[y*w+x] {
			outside[y*w+x] = true
			queue = append(queue, image.Pt(x, y))
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}

	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for _, d := range neighbors4 {
			q := p.Add(d)
			if q.X < 0 || q.Y < 0 || q.X >= w || q.Y >= h {
				continue
			}
			seed(q.X, q.Y)
		}
	}

	out := models.NewMask(w, h)
	for i := range out.Data {
		out.Data[i] = !outside[i]
	}
	return out
}
