package diagnosis

import (
	"strconv"
	"strings"
)

// NoSymptoms is shown when a condition has no symptom text.
const NoSymptoms = "No symptoms"

const (
	Cataract             = "cataract"
	Glaucoma             = "glaucoma"
	NormalEye            = "Normal Eye"
	DiabeticRetinopathy  = "diabetic retinopathy"
	symptomListSeparator = ", "
)

// Catalog maps class indices to canonical condition names and condition
// names to symptom text.
type Catalog struct {
	Names    map[int]string
	Symptoms map[string]string
}

// EyeCatalog is the catalog for the shipped four-class eye model.
func EyeCatalog() Catalog {
	return Catalog{
		Names: map[int]string{
			0: Cataract,
			1: Glaucoma,
			2: NormalEye,
			3: DiabeticRetinopathy,
		},
		Symptoms: map[string]string{
			Cataract:            "Symptoms for Cataract: Blurred vision, Colors seem faded, Glare",
			Glaucoma:            "Symptoms for Glaucoma: Patchy blind spots, Tunnel vision, Severe headache",
			DiabeticRetinopathy: "Symptoms for diabetic retinopathy: Distorted vision, Straight lines appear wavy, Dark, blurry areas",
		},
	}
}

// Name returns the canonical name for a class. Indices the catalog does not
// declare fall back to the label text without its leading index token.
func (c Catalog) Name(index int, label string) string {
	if name, ok := c.Names[index]; ok {
		return name
	}
	head, rest, found := strings.Cut(label, " ")
	if _, err := strconv.Atoi(head); found && err == nil {
		return strings.TrimSpace(rest)
	}
	return label
}

// SymptomText returns the symptom text for a condition, or NoSymptoms.
func (c Catalog) SymptomText(name string) string {
	if text, ok := c.Symptoms[name]; ok {
		return text
	}
	return NoSymptoms
}

// SymptomList splits the symptom text into display bullets.
func (c Catalog) SymptomList(name string) []string {
	return strings.Split(c.SymptomText(name), symptomListSeparator)
}
