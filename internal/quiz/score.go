package quiz

import "math"

const (
	ExcellentThreshold = 80
	PassThreshold      = 60
)

// Percentage is round(score/total*100); a quiz without questions scores 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

func Verdict(percentage int) string {
	if percentage >= ExcellentThreshold {
		return "Excellent work!"
	}
	return "Keep practicing!"
}

func Passed(percentage int) bool {
	return percentage >= PassThreshold
}
