package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "full yes any case", input: "YES\n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "empty answer defaults to no", input: "\n", want: false},
		{name: "end of input", input: "", want: false},
		{name: "anything else", input: "maybe\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			got, err := p.Confirm(context.Background(), "Link 2 transfers?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Link 2 transfers? [y/N]")
		})
	}
}

func TestPrompter_AssumeYes(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader(""), &out)
	p.AssumeYes = true

	got, err := p.Confirm(context.Background(), "Delete?")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Empty(t, out.String())
}

func TestPrompter_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPrompter(strings.NewReader("y\n"), &bytes.Buffer{}).Confirm(ctx, "Delete?")
	assert.ErrorIs(t, err, ErrInputCancelled)
}

func TestInterruptHandler(t *testing.T) {
	var out bytes.Buffer
	handler := NewInterruptHandler(&out)
	assert.False(t, handler.WasInterrupted())

	ctx, cancel := handler.HandleInterrupts(context.Background(), "Import")
	handler.interrupt()
	handler.interrupt()
	cancel()

	<-ctx.Done()
	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(out.String(), "Import interrupted!"))

	assert.NotNil(t, NewInterruptHandler(nil).writer)
}

func TestFormatAmount(t *testing.T) {
	assert.Contains(t, FormatAmount(decimal.RequireFromString("-4.5"), "USD"), "-4.50 USD")
	assert.Contains(t, FormatAmount(decimal.NewFromInt(12), ""), "12.00")
}

func TestRenderTable(t *testing.T) {
	table := RenderTable(
		[]string{"Date", "Vendor", "Amount"},
		[][]string{
			{"2024-03-01", "Coffee", "-4.50"},
			{"2024-03-02", "A much longer vendor"},
		},
	)

	lines := strings.Split(table, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, table, "A much longer vendor")
	assert.Contains(t, table, "Coffee")

	width := lipgloss.Width(lines[len(lines)-1])
	assert.Equal(t, width, lipgloss.Width(lines[len(lines)-2]), "rows share column widths")
}

func TestProgressBar(t *testing.T) {
	var out bytes.Buffer
	bar := NewProgressBar(&out, 3, "Importing")
	Advance(bar, 3)
	Advance(nil, 1)

	assert.True(t, bar.IsFinished())
}
