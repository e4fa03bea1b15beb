package formfill

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod"

	"github.com/example/agencybot/internal/logging"
	"github.com/example/agencybot/internal/models"
)

// fieldSpec maps one profile value onto the heuristics used to find its form
// control: a visible label to match loosely, and a name-attribute fragment.
type fieldSpec struct {
	label string
	key   string
	value string
}

func fieldsFor(profile models.ApplicantProfile) []fieldSpec {
	specs := []fieldSpec{
		{label: "Name", key: "name", value: profile.Name},
		{label: "Email", key: "email", value: profile.Email},
		{label: "Phone", key: "phone", value: profile.Phone},
		{label: "Instagram", key: "instagram", value: profile.Instagram},
	}
	if profile.HeightCM > 0 {
		specs = append(specs, fieldSpec{label: "Height", key: "height", value: strconv.Itoa(profile.HeightCM)})
	}
	out := specs[:0]
	for _, s := range specs {
		if s.value != "" {
			out = append(out, s)
		}
	}
	return out
}

type Filler struct {
	timeout time.Duration
	log     *logging.Logger
}

func NewFiller(fieldTimeout time.Duration, log *logging.Logger) *Filler {
	return &Filler{timeout: fieldTimeout, log: log.With("module", "formfill")}
}

// FillForm populates whatever controls it can find for the profile. Every
// field attempt is independently guarded; a partially filled form is a normal
// outcome, not an error, so this never fails.
func (f *Filler) FillForm(p *rod.Page, profile models.ApplicantProfile) {
	for _, spec := range fieldsFor(profile) {
		if err := f.fillByLabel(p, spec); err == nil {
			f.log.Debug("field filled via label", "field", spec.key)
			continue
		} else {
			f.log.Debug("label strategy failed", "field", spec.key, "err", err)
		}
		if err := f.fillByName(p, spec); err == nil {
			f.log.Debug("field filled via name attribute", "field", spec.key)
			continue
		} else {
			f.log.Info("field skipped, no matching control", "field", spec.key, "err", err)
		}
	}
}

// fillByLabel finds a visible <label> loosely matching the canonical label and
// sets the control it points at.
func (f *Filler) fillByLabel(p *rod.Page, spec fieldSpec) error {
	lbl, err := p.Timeout(f.timeout).ElementR("label", "/"+spec.label+"/i")
	if err != nil {
		return err
	}
	var el *rod.Element
	if forAttr, _ := lbl.Attribute("for"); forAttr != nil && *forAttr != "" {
		el, err = p.Timeout(f.timeout).Element("#" + *forAttr)
	} else {
		// Control nested inside the label itself.
		el, err = lbl.Timeout(f.timeout).Element("input, textarea, select")
	}
	if err != nil {
		return err
	}
	return f.setValue(el, spec.value)
}

// fillByName falls back to the first control whose name attribute contains the
// canonical key.
func (f *Filler) fillByName(p *rod.Page, spec fieldSpec) error {
	sel := fmt.Sprintf(`input[name*=%q], textarea[name*=%q]`, spec.key, spec.key)
	el, err := p.Timeout(f.timeout).Element(sel)
	if err != nil {
		return err
	}
	return f.setValue(el, spec.value)
}

func (f *Filler) setValue(el *rod.Element, value string) error {
	if err := el.Timeout(f.timeout).WaitVisible(); err != nil {
		return err
	}
	// Replace any prefilled value instead of appending to it.
	_ = el.SelectAllText()
	return el.Input(value)
}

// ClickSubmit presses the form's submit control. Only called when explicitly
// enabled; the default pipeline stops after evidence capture.
func (f *Filler) ClickSubmit(p *rod.Page) error {
	el, err := p.Timeout(f.timeout).ElementR("button", "/submit|apply|send/i")
	if err != nil {
		el, err = p.Timeout(f.timeout).Element(`input[type="submit"]`)
	}
	if err != nil {
		return fmt.Errorf("no submit control found: %w", err)
	}
	if err := el.WaitVisible(); err != nil {
		return err
	}
	return el.Click("left", 1)
}
