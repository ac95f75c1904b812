package cli

import (
	"fmt"
	"math"
	"strings"

	"callput-engine/internal/models"
)

const axisWidth = 11

// PayoffChart renders a payoff curve as terminal lines: profit above the
// zero line in green, losses in red, break-even points marked on the axis.
func (o *Output) PayoffChart(data models.ChartData, width, height int) []string {
	if data.Empty() {
		return []string{o.DimText("no payoff data in range")}
	}
	if width < 10 {
		width = 10
	}
	if height < 5 {
		height = 5
	}

	minY, maxY := math.Min(data.MinY, 0), math.Max(data.MaxY, 0)
	if maxY-minY < 1e-9 {
		maxY, minY = maxY+1, minY-1
	}
	rowOf := func(y float64) int {
		r := int(math.Round((maxY - y) / (maxY - minY) * float64(height-1)))
		return min(max(r, 0), height-1)
	}
	zeroRow := rowOf(0)

	grid := make([][]string, height)
	for r := range grid {
		grid[r] = make([]string, width)
		for c := range grid[r] {
			grid[r][c] = " "
			if r == zeroRow {
				grid[r][c] = o.DimText("─")
			}
		}
	}

	span := data.MaxX - data.MinX
	colOf := func(x float64) int {
		if span <= 0 {
			return 0
		}
		return int(math.Round((x - data.MinX) / span * float64(width-1)))
	}

	for c := 0; c < width; c++ {
		x := data.MinX
		if width > 1 {
			x += span * float64(c) / float64(width-1)
		}
		y := sampleAt(data.Points, x)
		mark := "•"
		switch {
		case y > 0:
			mark = o.Green(mark)
		case y < 0:
			mark = o.Red(mark)
		}
		grid[rowOf(y)][c] = mark
	}

	for _, bep := range data.BreakEvenPoints {
		if bep < data.MinX || bep > data.MaxX {
			continue
		}
		grid[zeroRow][colOf(bep)] = o.Yellow("┼")
	}

	lines := make([]string, 0, height+2)
	for r, row := range grid {
		label := ""
		switch r {
		case 0:
			label = fmt.Sprintf("%.2f", maxY)
		case zeroRow:
			label = "0"
		case height - 1:
			label = fmt.Sprintf("%.2f", minY)
		}
		lines = append(lines, PadLeft(label, axisWidth-2)+" "+o.DimText("│")+strings.Join(row, ""))
	}

	lines = append(lines, strings.Repeat(" ", axisWidth-1)+o.DimText("└"+strings.Repeat("─", width)))
	lo, hi := fmt.Sprintf("%.0f", data.MinX), fmt.Sprintf("%.0f", data.MaxX)
	gap := max(1, width-len(lo)-len(hi))
	lines = append(lines, strings.Repeat(" ", axisWidth)+lo+strings.Repeat(" ", gap)+hi)
	return lines
}

// sampleAt returns the profit of the sample nearest to x. Points are
// evenly spaced and sorted by price.
func sampleAt(points []models.ChartPoint, x float64) float64 {
	if len(points) == 1 || x <= points[0].Price {
		return points[0].Profit
	}
	last := points[len(points)-1]
	if x >= last.Price {
		return last.Profit
	}
	step := (last.Price - points[0].Price) / float64(len(points)-1)
	i := int(math.Round((x - points[0].Price) / step))
	return points[min(max(i, 0), len(points)-1)].Profit
}
