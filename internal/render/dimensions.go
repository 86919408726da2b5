package render

import "loopforge/internal/items"

// Dimensions maps a resolution tier and aspect ratio to concrete pixel
// dimensions. The fallback for an unrecognized combination is 512x512; the
// caller logs a warning when ok is false.
func Dimensions(tier, aspectRatio string) (width, height int, ok bool) {
	switch tier {
	case "720p":
		switch aspectRatio {
		case items.AspectSquare:
			return 720, 720, true
		case items.AspectVertical:
			return 720, 1280, true
		}
	case "1080p":
		switch aspectRatio {
		case items.AspectSquare:
			return 1080, 1080, true
		case items.AspectVertical:
			return 1080, 1920, true
		}
	}
	return 512, 512, false
}
