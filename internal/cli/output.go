package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд: таблицы для человека,
// JSON для скриптов. Данные идут в stdout, сообщения в stderr.
type Output struct {
	jsonMode bool
	out      io.Writer
	msg      io.Writer
}

// NewOutput создаёт Output в табличном или JSON режиме.
func NewOutput(jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, out: os.Stdout, msg: os.Stderr}
}

// Print выводит строки таблицей, либо jsonData в режиме --json.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		b, err := json.MarshalIndent(jsonData, "", "  ")
		if err != nil {
			fmt.Fprintln(o.msg, "Error:", err)
			return
		}
		fmt.Fprintln(o.out, string(b))
		return
	}
	o.Table(headers, rows)
}

// Table выводит выровненную таблицу с заголовком капсом.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.out, 0, 0, 3, ' ', 0)

	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
	}
	fmt.Fprintln(tw, strings.Join(upper, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// Success выводит короткое подтверждение в stderr, чтобы не
// мешать конвейерам, читающим stdout.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msg, msg)
}
