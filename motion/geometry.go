package motion

import "math"

func ComputeCenter(area GameArea) Position {
	return Position{
		X: area.Width/2 - BallSize/2,
		Y: area.Top + area.Height/2 - BallSize/2,
	}
}

// Clamp keeps p inside the ball's reachable box: x in [0, W-ball], y in [top, top+H-ball].
func Clamp(area GameArea, p Position) Position {
	return Position{
		X: clamp(p.X, 0, area.Width-BallSize),
		Y: clamp(p.Y, area.Top, area.Top+area.Height-BallSize),
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// AreaFromViewport carves the playfield out of the device window: the score
// header and the button row are reserved, as are the safe-area insets.
func AreaFromViewport(vp Viewport, in Insets) GameArea {
	area := GameArea{
		Width:  vp.Width,
		Height: vp.Height - (in.Top + in.Bottom + ChromeReserve),
		Top:    in.Top + HeaderReserve,
	}
	if area.Width < BallSize {
		area.Width = BallSize
	}
	if area.Height < BallSize {
		area.Height = BallSize
	}
	return area
}

// TouchesEdge reports whether a ball at p sits within eps of any wall.
func TouchesEdge(area GameArea, p Position, eps float64) bool {
	maxX := area.Width - BallSize
	maxY := area.Top + area.Height - BallSize
	return p.X <= eps ||
		p.X >= maxX-eps ||
		p.Y <= area.Top+eps ||
		p.Y >= maxY-eps
}
