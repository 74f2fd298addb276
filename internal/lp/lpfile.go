package lp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// lineWidth is where row bodies are wrapped onto continuation lines.
const lineWidth = 80

// WriteLP writes m in CPLEX LP format. Output depends only on declaration
// and insertion order, so identical models produce identical bytes.
func WriteLP(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	lw := &lineWriter{w: bw}

	if m.Name != "" {
		lw.line(`\Problem name: ` + m.Name)
		lw.line("")
	}
	lw.line("Minimize")
	obj := m.Objective()
	lw.row("obj", obj.Terms, m, "", obj.Const)

	lw.line("Subject To")
	for _, c := range m.rows {
		lw.row(c.Name, c.Terms, m, c.Sense.String()+" "+num(c.RHS), 0)
	}

	lw.line("Bounds")
	for _, v := range m.vars {
		if v.Kind == Binary {
			continue
		}
		switch {
		case v.Lower == v.Upper:
			lw.line(" " + v.Name + " = " + num(v.Lower))
		case math.IsInf(v.Upper, 1):
			if v.Lower != 0 {
				lw.line(" " + v.Name + " >= " + num(v.Lower))
			}
		default:
			lw.line(" " + num(v.Lower) + " <= " + v.Name + " <= " + num(v.Upper))
		}
	}

	if m.NumBinaries() > 0 {
		lw.line("Binaries")
		for _, v := range m.vars {
			if v.Kind == Binary {
				lw.line(" " + v.Name)
			}
		}
	}
	lw.line("End")
	if lw.err != nil {
		return lw.err
	}
	return bw.Flush()
}

// ExportLP writes the model to path.
func (m *Model) ExportLP(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lp: export: %w", err)
	}
	if err := WriteLP(f, m); err != nil {
		f.Close()
		return fmt.Errorf("lp: export %s: %w", path, err)
	}
	return f.Close()
}

type lineWriter struct {
	w   *bufio.Writer
	err error
}

func (lw *lineWriter) line(s string) {
	if lw.err != nil {
		return
	}
	_, lw.err = lw.w.WriteString(s + "\n")
}

// row writes " name: t1 + t2 ... tail", wrapping at lineWidth.
func (lw *lineWriter) row(name string, terms []Term, m *Model, tail string, constant float64) {
	var b strings.Builder
	cur := " " + name + ":"
	flush := func(tok string) {
		if len(cur)+1+len(tok) > lineWidth && strings.TrimSpace(cur) != "" {
			b.WriteString(cur + "\n")
			cur = "  " + tok
			return
		}
		cur += " " + tok
	}
	if len(terms) == 0 {
		// an empty body still needs a column; any declared one with a zero
		// coefficient keeps the row readable
		if len(m.vars) > 0 {
			flush("0 " + m.vars[0].Name)
		}
	}
	for i, t := range terms {
		flush(term(i == 0, t.Coef, m.vars[t.Var].Name))
	}
	if constant != 0 {
		if constant < 0 {
			flush("- " + num(-constant))
		} else {
			flush("+ " + num(constant))
		}
	}
	if tail != "" {
		flush(tail)
	}
	b.WriteString(cur)
	lw.line(b.String())
}

func term(first bool, coef float64, name string) string {
	sign := "+ "
	if coef < 0 {
		sign = "- "
		coef = -coef
	}
	if first {
		if sign == "+ " {
			sign = ""
		}
	}
	if coef == 1 {
		return sign + name
	}
	return sign + num(coef) + " " + name
}

func num(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
