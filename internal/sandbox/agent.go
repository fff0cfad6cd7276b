package sandbox

import (
	"fmt"
	"sort"
	"strings"
)

// Skill level thresholds used by the profile agent.
const (
	intermediateFrom = 40
	advancedFrom     = 75
)

// SkillVector is one inferred skill and its level.
type SkillVector struct {
	Skill string `json:"skill"`
	Level string `json:"level"`
}

// Profile is the profile agent's answer.
type Profile struct {
	SkillVectors []SkillVector `json:"skill_vectors"`
	HistoryLogs  []string      `json:"history_logs"`
}

func levelFor(score int) string {
	switch {
	case score >= advancedFrom:
		return "Advanced"
	case score >= intermediateFrom:
		return "Intermediate"
	default:
		return "Novice"
	}
}

type latentSkill struct {
	name  string
	needs []string
}

// Latent skills are inferred from the mean of the scores they depend on.
var latentSkills = []latentSkill{
	{name: "Data Analysis", needs: []string{"PYTHON", "SQL_TESTING"}},
	{name: "Front-end Development", needs: []string{"HTML", "CSS", "JAVASCRIPT"}},
	{name: "Systems Programming", needs: []string{"C", "CPP", "JAVA"}},
}

func scoreByKey(rec EmployeeRecord, key string) int {
	for i, col := range scoreColumns {
		if col.Key == key {
			return rec.Scores[i]
		}
	}
	return 0
}

// ProfileFor infers skill vectors and history lines from stored scores.
func ProfileFor(rec EmployeeRecord) Profile {
	profile := Profile{SkillVectors: []SkillVector{}, HistoryLogs: []string{}}
	scored := 0
	for i, col := range scoreColumns {
		score := rec.Scores[i]
		if score <= 0 {
			continue
		}
		scored++
		profile.SkillVectors = append(profile.SkillVectors, SkillVector{Skill: col.Label, Level: levelFor(score)})
	}
	if scored == 0 {
		profile.HistoryLogs = append(profile.HistoryLogs, "No assessment history recorded.")
		return profile
	}
	for _, latent := range latentSkills {
		total := 0
		for _, key := range latent.needs {
			total += scoreByKey(rec, key)
		}
		mean := total / len(latent.needs)
		if mean >= intermediateFrom {
			profile.SkillVectors = append(profile.SkillVectors, SkillVector{Skill: latent.name, Level: levelFor(mean)})
		}
	}

	ranked := rankedSkills(rec)
	profile.HistoryLogs = append(profile.HistoryLogs,
		fmt.Sprintf("Onboarded as %s with %d scored skills.", roleOrDefault(rec), scored),
		fmt.Sprintf("Strongest skill: %s (%d).", ranked[0].label, ranked[0].score),
	)
	weakest := ranked[len(ranked)-1]
	profile.HistoryLogs = append(profile.HistoryLogs, fmt.Sprintf("Weakest skill: %s (%d).", weakest.label, weakest.score))
	return profile
}

type rankedSkill struct {
	label string
	score int
}

// rankedSkills orders every skill by score, highest first; ties keep column order.
func rankedSkills(rec EmployeeRecord) []rankedSkill {
	out := make([]rankedSkill, len(scoreColumns))
	for i, col := range scoreColumns {
		out[i] = rankedSkill{label: col.Label, score: rec.Scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func roleOrDefault(rec EmployeeRecord) string {
	if rec.RoleName.Valid && rec.RoleName.String != "" {
		return rec.RoleName.String
	}
	return "N/A"
}

// Report renders the plain-text skill report opened by the Roadmap action.
func Report(rec EmployeeRecord) string {
	ranked := rankedSkills(rec)
	var b strings.Builder
	fmt.Fprintf(&b, "Skill report for %s\n", rec.Name)
	fmt.Fprintf(&b, "Role: %s\n\n", roleOrDefault(rec))
	b.WriteString("Top skills\n")
	for _, s := range ranked[:3] {
		fmt.Fprintf(&b, "  %-14s %3d\n", s.label, s.score)
	}
	b.WriteString("\nSkills to develop\n")
	for _, s := range ranked[len(ranked)-3:] {
		fmt.Fprintf(&b, "  %-14s %3d\n", s.label, s.score)
	}
	b.WriteString("\nRoadmap\n")
	for i, s := range ranked[len(ranked)-3:] {
		fmt.Fprintf(&b, "  %d. %s: reach %s (currently %s).\n", i+1, s.label, levelFor(nextTarget(s.score)), levelFor(s.score))
	}
	return b.String()
}

func nextTarget(score int) int {
	switch {
	case score < intermediateFrom:
		return intermediateFrom
	default:
		return advancedFrom
	}
}
