package types

import "slices"

// Clone returns a deep copy of the detail.
func (d *ScenarioDetail) Clone() *ScenarioDetail {
	if d == nil {
		return nil
	}
	out := *d
	if d.Configurations != nil {
		out.Configurations = make([]ConfigurationDetail, len(d.Configurations))
		for i := range d.Configurations {
			out.Configurations[i] = *d.Configurations[i].Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the detail.
func (d *ConfigurationDetail) Clone() *ConfigurationDetail {
	if d == nil {
		return nil
	}
	out := *d
	out.Objectifs = slices.Clone(d.Objectifs)
	out.Cibles = slices.Clone(d.Cibles)
	if d.Plans != nil {
		out.Plans = make([]Plan, len(d.Plans))
		for i, p := range d.Plans {
			p.Items = slices.Clone(p.Items)
			p.Articles = slices.Clone(p.Articles)
			out.Plans[i] = p
		}
	}
	return &out
}

// Clone returns a deep copy of the generated plan.
func (p *GeneratedPlan) Clone() *GeneratedPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Articles = slices.Clone(p.Articles)
	return &out
}
