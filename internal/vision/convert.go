package vision

import (
	"image"

	"golang.org/x/image/draw"

	"vision-inspector/internal/domain/entity"
)

// FrameFromImage переводит произвольное изображение в RGB-кадр
func FrameFromImage(img image.Image) *entity.Frame {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	f := entity.NewFrame(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := rgba.PixOffset(x, y)
			f.SetRGB(x, y, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
		}
	}
	return f
}

// FrameToImage переводит кадр в image.RGBA для кодирования
func FrameToImage(f *entity.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.RGB(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, b, 255
		}
	}
	return img
}
