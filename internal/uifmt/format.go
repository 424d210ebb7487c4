package uifmt

import (
	"fmt"
)

func Ratio(used, total int) string {
	return fmt.Sprintf("%d/%d", used, total)
}

// MemMB renders a megabyte quantity with M/G/T scaling, one decimal place
// above a gigabyte.
func MemMB(v int) string {
	if v >= 1024*1024 {
		return fmt.Sprintf("%.1fT", float64(v)/1024.0/1024.0)
	}
	if v >= 1024 {
		return fmt.Sprintf("%.1fG", float64(v)/1024.0)
	}
	return fmt.Sprintf("%dM", v)
}
