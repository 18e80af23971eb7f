package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(x, y float64, text string) run {
	return run{X: x, Y: y, Width: float64(len(text)) * 5, Size: 10, Text: text}
}

func TestLines_GroupsByBaseline(t *testing.T) {
	runs := []run{
		word(200, 700, "1,234"),
		word(50, 701.5, "Austria"),
		word(50, 680, "Belgium"),
	}
	lines := DefaultLayout().lines(runs)
	require.Len(t, lines, 2)
	require.Len(t, lines[0].Cells, 2)
	assert.Equal(t, "Austria", lines[0].Cells[0].Text)
	assert.Equal(t, "1,234", lines[0].Cells[1].Text)
	assert.Equal(t, "Belgium", lines[1].text())
}

func TestLines_JoinsCloseRuns(t *testing.T) {
	runs := []run{
		word(50, 700, "New"),   // ends at 65
		word(68, 700, "car"),   // word gap
		word(83, 700, "s"),     // touching
		word(150, 700, "2025"), // cell gap
	}
	lines := DefaultLayout().lines(runs)
	require.Len(t, lines, 1)
	require.Len(t, lines[0].Cells, 2)
	assert.Equal(t, "New cars", lines[0].Cells[0].Text)
	assert.Equal(t, "2025", lines[0].Cells[1].Text)
}

func TestDetect_MergesRaggedRowsIntoColumns(t *testing.T) {
	runs := []run{
		word(50, 700, "Country"), word(200, 700, "Sep"), word(300, 700, "Change"),
		word(50, 685, "Austria"), word(200, 685, "1,234"), word(300, 685, "+5.1"),
		word(50, 670, "EUROPEAN UNION"),
		word(50, 655, "Belgium"), word(300, 655, "-2.0"), // missing middle value
	}
	tables, isFallback := DefaultLayout().detect(runs)
	assert.False(t, isFallback)
	require.Len(t, tables, 1)
	assert.Equal(t, Table{
		{"Country", "Sep", "Change"},
		{"Austria", "1,234", "+5.1"},
		{"EUROPEAN UNION", "", ""},
		{"Belgium", "", "-2.0"},
	}, tables[0])
}

func TestDetect_SeparateTables(t *testing.T) {
	runs := []run{
		word(50, 700, "A"), word(200, 700, "1"),
		word(50, 685, "B"), word(200, 685, "2"),
		word(50, 650, "Notes follow"),
		word(50, 635, "and continue"),
		word(50, 600, "C"), word(200, 600, "3"),
		word(50, 585, "D"), word(200, 585, "4"),
	}
	tables, isFallback := DefaultLayout().detect(runs)
	assert.False(t, isFallback)
	require.Len(t, tables, 2)
	assert.Equal(t, Table{{"A", "1"}, {"B", "2"}}, tables[0])
	assert.Equal(t, Table{{"Notes follow", ""}, {"and continue", ""}, {"C", "3"}, {"D", "4"}}, tables[1])
}

func TestDetect_SingleMultiCellLineIsNotATable(t *testing.T) {
	runs := []run{
		word(50, 700, "Brussels"), word(300, 700, "21 October 2025"),
		word(50, 680, "Press release"),
	}
	tables, isFallback := DefaultLayout().detect(runs)
	assert.True(t, isFallback)
	require.Len(t, tables, 1)
	assert.Equal(t, Table{{"Brussels 21 October 2025"}, {"Press release"}}, tables[0])
}

func TestDetect_NoRuns(t *testing.T) {
	tables, isFallback := DefaultLayout().detect(nil)
	assert.True(t, isFallback)
	require.Len(t, tables, 1)
	assert.Empty(t, tables[0])
}
