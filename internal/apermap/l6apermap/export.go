package l6apermap

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
)

// WriteCoefficients writes one CSV row per fiber with the raw power-basis
// coefficients of its trace, lowest order first.
func WriteCoefficients(w io.Writer, traces []apermap.Polynomial) error {
	degree := 0
	for _, tr := range traces {
		degree = max(degree, tr.Degree())
	}
	cw := csv.NewWriter(w)
	header := []string{"fiber"}
	for k := 0; k <= degree; k++ {
		header = append(header, fmt.Sprintf("c%d", k))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, tr := range traces {
		rec := make([]string, degree+2)
		rec[0] = strconv.Itoa(i + 1)
		for k := range rec[1:] {
			rec[k+1] = "0"
		}
		for k, c := range tr.Standard() {
			rec[k+1] = strconv.FormatFloat(c, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMidpoints writes one "<fiber> <row>" line per fiber.
func WriteMidpoints(w io.Writer, midpoints []int) error {
	for i, y := range midpoints {
		if _, err := fmt.Fprintf(w, "%d %d\n", i+1, y); err != nil {
			return err
		}
	}
	return nil
}
