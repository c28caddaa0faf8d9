package prompt

import (
	"regexp"
	"strings"
)

// Guidance is the extra instruction attached to the prompt when a core
// measure condition is mentioned in the case note.
type Guidance struct {
	Condition string
	Triggers  []string
	Prompt    string
}

var guidance = []Guidance{
	{
		Condition: "sepsis",
		Triggers:  []string{"sepsis", "septic shock", "severe sepsis", "sep-1"},
		Prompt:    "Analyze this case for sepsis management per CMS SEP-1 and Surviving Sepsis Campaign guidelines. Provide a detailed 3- and 6-hour bundle checklist, diagnostic workup, empiric antibiotic options with doses, initial fluid resuscitation details (including volume/kg), vasopressor initiation criteria and agents, lactate monitoring, source control measures, and reassessment plan. Include CMS compliance checklist and references.",
	},
	{
		Condition: "heart failure",
		Triggers:  []string{"heart failure", "hf", "chf", "congestive heart failure"},
		Prompt:    "Generate a detailed inpatient heart failure management plan per CMS HF core measures and AHA/ACC guidelines. Include diagnostic evaluation, IV diuretic regimen with dosing and monitoring, guideline-directed medical therapy (GDMT) optimization, discharge education requirements, follow-up planning, and documentation points to meet CMS HF-1 (LV function assessment, discharge instructions, ACEi/ARB/ARNI). Provide quality measure checklist and guideline references.",
	},
	{
		Condition: "ami",
		Triggers:  []string{"ami", "acute myocardial infarction", "mi", "stemi", "nstemi"},
		Prompt:    "Provide a comprehensive AMI management plan per CMS AMI core measures and ACC/AHA guidelines. Include reperfusion strategy timing (PCI vs. fibrinolysis), antiplatelet and anticoagulant dosing, adjunctive medications, monitoring parameters, discharge medication list per CMS AMI-10, smoking cessation counseling requirements, and documentation needed for CMS compliance. Include relevant guideline citations.",
	},
	{
		Condition: "stroke",
		Triggers:  []string{"stroke", "tia", "cva", "transient ischemic attack", "ischemic stroke"},
		Prompt:    "Generate an acute ischemic stroke management plan per CMS stroke core measures and AHA/ASA guidelines. Include eligibility assessment for thrombolysis or thrombectomy, antiplatelet therapy timing/dosing, dysphagia screening steps, DVT prophylaxis, statin initiation, BP management targets, and patient/family education. Provide CMS STK-1 to STK-10 checklist with documentation requirements and references.",
	},
	{
		Condition: "vte",
		Triggers:  []string{"vte", "venous thromboembolism", "dvt", "deep vein thrombosis", "pe", "pulmonary embolism"},
		Prompt:    "Develop a detailed plan for VTE prophylaxis or treatment per CMS VTE core measures and CHEST guidelines. Include risk stratification, agent selection with dosing, timing, contraindication documentation, and discharge anticoagulation education requirements. Include CMS VTE-1 and VTE-2 compliance checklist and references.",
	},
	{
		Condition: "pneumonia",
		Triggers:  []string{"pneumonia", "cap", "community acquired pneumonia", "hap", "hospital acquired pneumonia", "vap", "ventilator associated pneumonia"},
		Prompt:    "Provide an inpatient pneumonia management plan per CMS PN core measures and IDSA/ATS guidelines. Include diagnostic workup, empiric antibiotic regimens with doses (CAP vs. HAP/VAP), timing of first dose, blood culture guidance, oxygenation assessment, vaccine counseling, and discharge planning. Provide CMS compliance checklist and references.",
	},
	{
		Condition: "scip",
		Triggers:  []string{"scip", "surgical care improvement", "perioperative infection prevention"},
		Prompt:    "Create a perioperative infection prevention checklist per CMS SCIP core measures. Include antibiotic selection/timing/dosing, appropriate discontinuation timing, perioperative glucose control, normothermia maintenance, and hair removal recommendations. Include CMS SCIP compliance points and references.",
	},
	{
		Condition: "readmission",
		Triggers:  []string{"readmission", "hrpp", "high risk discharge"},
		Prompt:    "Provide a high-risk discharge management plan to prevent readmission per CMS HRRP quality measures. Include patient risk stratification, discharge medication reconciliation, follow-up appointment scheduling, post-discharge call checklist, home health referrals, and education requirements. Include references to CMS readmission prevention standards.",
	},
	{
		Condition: "dka",
		Triggers:  []string{"dka", "diabetic ketoacidosis", "hhs", "hyperosmolar hyperglycemic state"},
		Prompt:    "Generate a detailed inpatient management plan for DKA or HHS per ADA guidelines and hospital best practices. Include diagnostic criteria, stepwise fluid resuscitation plan (type, volume, and rate), insulin therapy with dosing and transition to subcutaneous insulin, electrolyte monitoring and replacement (potassium, phosphate), identification and treatment of precipitating factors, criteria for resolution, and patient education prior to discharge. Include CMS quality documentation requirements and references.",
	},
}

// detectors are compiled once; triggers match whole words so short
// abbreviations like "pe" or "mi" do not fire inside other words.
var detectors = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(guidance))
	for i, g := range guidance {
		alts := make([]string, len(g.Triggers))
		for j, t := range g.Triggers {
			alts[j] = regexp.QuoteMeta(t)
		}
		out[i] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
	}
	return out
}()

// DetectConditions returns the core measure conditions mentioned in note,
// in a fixed order.
func DetectConditions(note string) []string {
	var found []string
	for i, re := range detectors {
		if re.MatchString(note) {
			found = append(found, guidance[i].Condition)
		}
	}
	return found
}

// GuidanceFor returns the guidance text of a detected condition.
func GuidanceFor(condition string) (string, bool) {
	for _, g := range guidance {
		if g.Condition == condition {
			return g.Prompt, true
		}
	}
	return "", false
}
