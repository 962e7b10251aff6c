package types

import (
	"strings"
)

// NotFound is the marker the model writes for a field it could not read.
const NotFound = "bulunamadı"

// AnalysisResult is the structured reading of an accounting document. Absent
// fields are nil, never empty strings.
type AnalysisResult struct {
	Tarih        *string `json:"tarih"`
	Firma        *string `json:"firma"`
	Ucret        *string `json:"ucret"`
	VergiMiktari *string `json:"vergi_miktari"`
	RawResponse  string  `json:"raw_response"`
}

type field int

const (
	fieldTarih field = iota
	fieldFirma
	fieldUcret
	fieldVergi
)

var linePrefixes = []struct {
	prefix string
	field  field
}{
	{"Tarih:", fieldTarih},
	{"Firma:", fieldFirma},
	{"Ücret:", fieldUcret},
	{"Ucret:", fieldUcret},
	{"Vergi Miktarı:", fieldVergi},
	{"Vergi Miktari:", fieldVergi},
}

// ParseAnalysis reads the four-line answer format out of raw model output.
// It never fails: unrecognized lines are ignored and raw is always kept.
func ParseAnalysis(raw string) AnalysisResult {
	res := AnalysisResult{RawResponse: raw}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		for _, p := range linePrefixes {
			rest, ok := strings.CutPrefix(line, p.prefix)
			if !ok {
				continue
			}
			if v, ok := fieldValue(rest); ok {
				res.set(p.field, v)
			}
			break
		}
	}
	return res
}

func (r *AnalysisResult) set(f field, v string) {
	switch f {
	case fieldTarih:
		r.Tarih = &v
	case fieldFirma:
		r.Firma = &v
	case fieldUcret:
		r.Ucret = &v
	case fieldVergi:
		r.VergiMiktari = &v
	}
}

func fieldValue(rest string) (string, bool) {
	v := strings.TrimSpace(rest)
	if v == "" || IsNotFound(v) {
		return "", false
	}
	return v, true
}

// IsNotFound reports whether v is the not-found marker in any letter case,
// optionally quoted. Dotted and dotless i are treated alike so that
// "BULUNAMADI" matches.
func IsNotFound(v string) bool {
	v = strings.Trim(strings.TrimSpace(v), `"'“”`)
	return strings.EqualFold(foldTurkishI(v), "bulunamadi")
}

var turkishI = strings.NewReplacer("ı", "i", "İ", "i", "I", "i")

func foldTurkishI(s string) string { return turkishI.Replace(s) }

// Fields returns the parsed values keyed by their JSON names, skipping
// absent ones.
func (r AnalysisResult) Fields() map[string]string {
	out := make(map[string]string, 4)
	for k, v := range map[string]*string{
		"tarih":         r.Tarih,
		"firma":         r.Firma,
		"ucret":         r.Ucret,
		"vergi_miktari": r.VergiMiktari,
	} {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
