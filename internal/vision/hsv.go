package vision

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"vision-inspector/internal/domain/entity"
)

// HSV цвет в диапазонах OpenCV: H 0..179, S и V 0..255
type HSV struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

// ToHSV переводит RGB в HSV так же, как cv::cvtColor для 8-битных изображений.
func ToHSV(r, g, b uint8) HSV {
	rf, gf, bf := float64(r), float64(g), float64(b)
	v := math.Max(rf, math.Max(gf, bf))
	mn := math.Min(rf, math.Min(gf, bf))
	diff := v - mn

	var s, h float64
	if v > 0 {
		s = 255 * diff / v
	}
	if diff > 0 {
		switch v {
		case rf:
			h = 60 * (gf - bf) / diff
		case gf:
			h = 120 + 60*(bf-rf)/diff
		default:
			h = 240 + 60*(rf-gf)/diff
		}
		if h < 0 {
			h += 360
		}
	}
	hh := math.Round(h / 2)
	if hh >= 180 {
		hh -= 180
	}
	return HSV{H: uint8(hh), S: uint8(math.Round(s)), V: uint8(v)}
}

func checkROI(f *entity.Frame, roi entity.ROI) error {
	if f.Empty() {
		return fmt.Errorf("%w: empty frame", entity.ErrCapture)
	}
	if !roi.Inside(f.Width, f.Height) {
		return fmt.Errorf("%w: %s outside %dx%d", entity.ErrRoiOutOfBounds, roi, f.Width, f.Height)
	}
	return nil
}

func hsvROIPure(f *entity.Frame, roi entity.ROI) ([]HSV, error) {
	if err := checkROI(f, roi); err != nil {
		return nil, err
	}
	out := make([]HSV, 0, roi.Area())
	for y := roi.Y; y < roi.Y+roi.H; y++ {
		for x := roi.X; x < roi.X+roi.W; x++ {
			out = append(out, ToHSV(f.RGB(x, y)))
		}
	}
	return out, nil
}

// MeanHue усредняет тон по кругу 0..179: 179 и 1 дают 0, а не 90.
func MeanHue(hues []float64) uint8 {
	if len(hues) == 0 {
		return 0
	}
	angles := make([]float64, len(hues))
	for i, h := range hues {
		angles[i] = h * 2 * math.Pi / 180
	}
	h := math.Round(stat.CircularMean(angles, nil) * 180 / (2 * math.Pi))
	h = math.Mod(h+180, 180)
	return uint8(h)
}

// HSVBand диапазон цвета вокруг центра с допусками по каждому каналу
type HSVBand struct {
	Center HSV `json:"center"`
	DH     int `json:"dh"`
	DS     int `json:"ds"`
	DV     int `json:"dv"`
}

// Contains проверяет попадание цвета в диапазон. Тон сравнивается по кругу (0 и 179 соседи).
func (b HSVBand) Contains(c HSV) bool {
	dh := absInt(int(c.H) - int(b.Center.H))
	if dh > 90 {
		dh = 180 - dh
	}
	return dh <= b.DH &&
		absInt(int(c.S)-int(b.Center.S)) <= b.DS &&
		absInt(int(c.V)-int(b.Center.V)) <= b.DV
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
