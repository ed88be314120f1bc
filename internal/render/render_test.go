package render

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func rgb(img image.Image, x, y int) (uint8, uint8, uint8) {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return c.R, c.G, c.B
}

func TestClockHands(t *testing.T) {
	white := color.NRGBA{255, 255, 255, 255}
	img := Clock(time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), 200, white)
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Fatalf("bounds = %v", b)
	}

	// r = 96; hour hand points at 3, minute hand at 12
	if r, g, b := rgb(img, 100+34, 100); r != 255 || g != 255 || b != 255 {
		t.Fatalf("hour hand pixel = %d,%d,%d", r, g, b)
	}
	if r, g, b := rgb(img, 100, 100-58); r != 255 || g != 255 || b != 255 {
		t.Fatalf("minute hand pixel = %d,%d,%d", r, g, b)
	}
	if r, g, b := rgb(img, 100-34, 100); r != 0 || g != 0 || b != 0 {
		t.Fatalf("left of centre should be empty, got %d,%d,%d", r, g, b)
	}
}

func TestAccelBall(t *testing.T) {
	// reach = 100 - 10 - 2 = 88
	img := Accel(0.5, 0, 200)
	if r, g, _ := rgb(img, 144, 100); r < 200 || g > 60 {
		t.Fatalf("ball not at +0.5g x: %d,%d", r, g)
	}

	img = Accel(0, 3, 200)
	if r, g, _ := rgb(img, 100, 12); r < 200 || g > 60 {
		t.Fatalf("ball not clamped to the top of the ring: %d,%d", r, g)
	}
	if r, _, _ := rgb(img, 100, 100); r == 230 {
		t.Fatalf("ball still drawn at centre")
	}
}
