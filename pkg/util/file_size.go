package util

import "math"

// FileSizeKB converts a byte count to kilobytes rounded to two decimal
// places. File rows and usage counters all store this unit.
func FileSizeKB(bytes int64) float64 {
	return math.Round(float64(bytes)/1024*100) / 100
}
