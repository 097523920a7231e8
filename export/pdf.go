package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nutriplan/types"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	pageMargin   = 40
	lineHeight   = 13
	linesPerPage = 56
	bodyFont     = "Helvetica"
	boldFont     = "Helvetica-Bold"
)

// The layout types mirror the subset of pdfcpu's JSON create format we use.
type layout struct {
	Paper  string          `json:"paper"`
	Origin string          `json:"origin"`
	Pages  map[string]page `json:"pages"`
}

type page struct {
	Content content `json:"content"`
}

type content struct {
	Text  []textBox `json:"text,omitempty"`
	Table []table   `json:"table,omitempty"`
}

type font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type textBox struct {
	Value string `json:"value"`
	Pos   [2]int `json:"pos"`
	Font  font   `json:"font"`
}

type tableHeader struct {
	Values []string `json:"values"`
	Font   font     `json:"font"`
	BgCol  string   `json:"bgCol,omitempty"`
}

type table struct {
	Pos        [2]int      `json:"pos"`
	Width      int         `json:"width"`
	Rows       int         `json:"rows"`
	Cols       int         `json:"cols"`
	LineHeight int         `json:"lineHeight"`
	Font       font        `json:"font"`
	Header     tableHeader `json:"header"`
	Values     [][]string  `json:"values"`
}

// PDF renders a tabular summary of the plan followed by the plan text.
func PDF(w io.Writer, plan types.PlanResult, p types.UserProfile) error {
	raw, err := Layout(plan, p)
	if err != nil {
		return err
	}
	if err := api.Create(nil, bytes.NewReader(raw), w, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// Layout builds the pdfcpu JSON document for a plan.
func Layout(plan types.PlanResult, p types.UserProfile) ([]byte, error) {
	doc := layout{Paper: "A4P", Origin: "UpperLeft", Pages: map[string]page{}}
	doc.Pages["1"] = summaryPage(plan, p)

	lines := strings.Split(strings.TrimRight(plan.Text, "\n"), "\n")
	for n := 0; len(lines) > 0; n++ {
		take := min(linesPerPage, len(lines))
		doc.Pages[strconv.Itoa(n+2)] = textPage(lines[:take])
		lines = lines[take:]
	}
	return json.MarshalIndent(doc, "", "  ")
}

func summaryPage(plan types.PlanResult, p types.UserProfile) page {
	const width = 515
	y := pageMargin
	var c content

	c.Text = append(c.Text, textBox{
		Value: "PLAN NUTRICIONAL - MÉTODO TRES DÍAS Y CARGA",
		Pos:   [2]int{pageMargin, y},
		Font:  font{Name: boldFont, Size: 14},
	})
	y += 30

	patient := [][]string{
		{"Edad", fmt.Sprintf("%d años", p.Basic.Age)},
		{"Altura", fmt.Sprintf("%.0f cm", p.Basic.HeightCm)},
		{"Peso", fmt.Sprintf("%.1f kg", p.Basic.WeightKg)},
		{"Ubicación", p.Location()},
		{"Objetivo", p.Basic.Objective},
		{"Actividad", fmt.Sprintf("%s (%s)", strings.Join(p.Activity.Types, ", "), p.Activity.Intensity)},
		{"Suplementos", orNone(p.Basic.Supplements)},
		{"Restricciones", orNone(p.Basic.Restrictions)},
	}
	c.Table = append(c.Table, newTable(y, width, []string{"Paciente", ""}, patient))
	y += (len(patient) + 2) * (lineHeight + 4)

	t := plan.Targets
	macros := [][]string{
		{"Metabolismo basal", kcal(t.BMR), "", "", ""},
		{"Mantenimiento", kcal(t.MaintenanceCalories), "", "", ""},
		{"Objetivo diario", kcal(t.TargetCalories), grams(t.ProteinG), grams(t.CarbsG), grams(t.FatG)},
	}
	c.Table = append(c.Table, newTable(y, width, []string{"Requerimiento", "Energía", "Proteína", "Carbohidratos", "Grasas"}, macros))
	y += (len(macros) + 2) * (lineHeight + 4)

	skeleton := make([][]string, 0, len(plan.Meals))
	for _, m := range plan.Meals {
		skeleton = append(skeleton, []string{m.Name, m.Window, kcal(m.Target.Calories), grams(m.Target.Protein), grams(m.Target.Carbs), grams(m.Target.Fat)})
	}
	if len(skeleton) > 0 {
		c.Table = append(c.Table, newTable(y, width, []string{"Comida", "Horario", "Energía", "P", "C", "G"}, skeleton))
		y += (len(skeleton) + 2) * (lineHeight + 4)
	}

	status := "Plan validado automáticamente."
	if !plan.Validated {
		status = "Plan NO validado: revisar las notas al final del texto."
	}
	c.Text = append(c.Text, textBox{Value: status, Pos: [2]int{pageMargin, y}, Font: font{Name: bodyFont, Size: 10}})
	return page{Content: c}
}

func textPage(lines []string) page {
	var c content
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		f := font{Name: bodyFont, Size: 9}
		if headingLine(l) {
			f = font{Name: boldFont, Size: 10}
		}
		c.Text = append(c.Text, textBox{Value: l, Pos: [2]int{pageMargin, pageMargin + i*lineHeight}, Font: f})
	}
	return page{Content: c}
}

func headingLine(l string) bool {
	l = strings.TrimSpace(l)
	return l == strings.ToUpper(l) && !strings.HasPrefix(l, "-")
}

func newTable(y, width int, header []string, rows [][]string) table {
	return table{
		Pos:        [2]int{pageMargin, y},
		Width:      width,
		Rows:       len(rows),
		Cols:       len(header),
		LineHeight: lineHeight + 4,
		Font:       font{Name: bodyFont, Size: 9},
		Header:     tableHeader{Values: header, Font: font{Name: boldFont, Size: 9}, BgCol: "#DDDDDD"},
		Values:     rows,
	}
}

func kcal(v float64) string  { return fmt.Sprintf("%.0f kcal", v) }
func grams(v float64) string { return fmt.Sprintf("%.0f g", v) }

func orNone(items []string) string {
	if len(items) == 0 {
		return "Ninguno"
	}
	return strings.Join(items, ", ")
}
