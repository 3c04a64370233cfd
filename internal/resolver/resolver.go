package resolver

import (
	"context"
	"strings"

	"github.com/insight-edu/pageflow/internal/telemetry"
)

// ClassRef is the minimal class shape the resolver needs: enough to run the
// match ladder against a name and to group by grade for expansion.
type ClassRef struct {
	ID      string
	Name    string
	Grade   string
	Subject string
}

// NamedRef is the minimal shape for students and assignments: an ID paired
// with the free-text name the ladder matches against.
type NamedRef struct {
	ID   string
	Name string
}

// Catalog is the narrow read interface the resolver depends on, satisfied
// by BackendCatalog, an adapter over the backend client. Kept separate from
// internal/tools.DataSource because the resolver only ever needs
// (teacherId[, classId]) -> names, never the full adapter surface.
type Catalog interface {
	ClassesForTeacher(ctx context.Context, teacherID string) ([]ClassRef, error)
	StudentsForClass(ctx context.Context, teacherID, classID string) ([]NamedRef, error)
	AssignmentsForClass(ctx context.Context, teacherID, classID string) ([]NamedRef, error)
}

const fuzzyThreshold = 0.6

// Resolver runs the four-layer match ladder of §4.3 against a Catalog.
type Resolver struct {
	catalog Catalog
	tel     telemetry.Bundle
}

// New constructs a Resolver.
func New(catalog Catalog, tel telemetry.Bundle) *Resolver {
	return &Resolver{catalog: catalog, tel: tel.WithDefaults()}
}

// Resolve implements §4.3: (teacherId, freeText, currentContext) -> Result.
func (r *Resolver) Resolve(ctx context.Context, teacherID, freeText string, currentContext map[string]any) Result {
	if freeText == "" {
		return empty()
	}

	classes, err := r.catalog.ClassesForTeacher(ctx, teacherID)
	if err != nil {
		r.tel.Logger.Warn(ctx, "resolver: class catalog fetch failed, degrading", "err", err.Error())
		return degraded()
	}

	classEntities, classAmbiguous := r.resolveClasses(freeText, classes)

	var missing []string
	var entities []Entity
	entities = append(entities, classEntities...)

	resolvedClassID := ""
	if len(classEntities) == 1 {
		resolvedClassID = classEntities[0].EntityID
	} else if ctxClassID, ok := currentContext["classId"].(string); ok && ctxClassID != "" {
		resolvedClassID = ctxClassID
	}

	needsClassContext := len(classEntities) == 0
	if needsClassContext && resolvedClassID == "" {
		// No class was named and none is carried in context: any
		// student/assignment mention in freeText cannot be resolved.
		if mentionsDependentEntity(freeText) {
			missing = append(missing, "class")
		}
	} else if resolvedClassID != "" {
		studentEntities, studentAmbiguous, err := r.resolveDependent(ctx, teacherID, resolvedClassID, freeText, EntityStudent, r.catalog.StudentsForClass)
		if err != nil {
			r.tel.Logger.Warn(ctx, "resolver: student catalog fetch failed, degrading", "err", err.Error())
			return degraded()
		}
		entities = append(entities, studentEntities...)
		classAmbiguous = classAmbiguous || studentAmbiguous

		assignmentEntities, assignmentAmbiguous, err := r.resolveDependent(ctx, teacherID, resolvedClassID, freeText, EntityAssignment, r.catalog.AssignmentsForClass)
		if err != nil {
			r.tel.Logger.Warn(ctx, "resolver: assignment catalog fetch failed, degrading", "err", err.Error())
			return degraded()
		}
		entities = append(entities, assignmentEntities...)
		classAmbiguous = classAmbiguous || assignmentAmbiguous
	}

	scopeMode := ScopeNone
	switch {
	case countByType(entities, EntityClass) > 1:
		scopeMode = ScopeMulti
	case len(entities) > 0:
		scopeMode = ScopeSingle
	}

	return Result{
		Entities:       entities,
		ScopeMode:      scopeMode,
		IsAmbiguous:    classAmbiguous,
		MissingContext: missing,
	}
}

// resolveClasses runs layers 1 (exact), 2 (alias), 3 (grade expansion), and
// 4 (fuzzy) against the teacher's classes, in that priority order, per
// §4.3's ladder semantics ("higher-confidence matches short-circuit").
func (r *Resolver) resolveClasses(freeText string, classes []ClassRef) ([]Entity, bool) {
	norm := normalize(freeText)

	// Layer 1: exact — a class name appears verbatim in the utterance.
	// Spec's "normalized token equality" is generalized to containment
	// since real messages embed the reference inside a full sentence
	// ("Analyze Form 1A English Unit 5 test"), not as a bare token.
	for _, c := range classes {
		if name := normalize(c.Name); name != "" && containsToken(norm, name) {
			return []Entity{{EntityType: EntityClass, EntityID: c.ID, DisplayName: c.Name, Confidence: 1.0, MatchType: MatchExact}}, false
		}
	}

	// Layer 2: alias — locale-variant spellings of the class's digit+letter
	// key ("1A", "F1A", "1A班", "中一A班" all normalize to a string
	// containing "1a").
	for _, c := range classes {
		key := classKey(c.Name)
		for _, variant := range aliasVariants(key) {
			if variant != "" && containsToken(norm, variant) {
				return []Entity{{EntityType: EntityClass, EntityID: c.ID, DisplayName: c.Name, Confidence: 1.0, MatchType: MatchAlias}}, false
			}
		}
	}

	// Layer 3: grade expansion — a collective trigger fans out to every
	// class in the named grade.
	if hasGradeTrigger(freeText) {
		if digits := gradeDigitsFromText(freeText); digits != "" {
			var expanded []Entity
			for _, c := range classes {
				if gradeDigitsFromText(c.Grade) == digits {
					expanded = append(expanded, Entity{EntityType: EntityClass, EntityID: c.ID, DisplayName: c.Name, Confidence: 1.0, MatchType: MatchGradeExpansion})
				}
			}
			if len(expanded) > 0 {
				return expanded, false
			}
		}
	}

	// Layer 4: fuzzy — first by subject mention (e.g. "english performance"
	// naming every English class), falling back to Levenshtein similarity
	// of the whole utterance against each class name for near-miss typos.
	var bySubject []Entity
	for _, c := range classes {
		if subj := normalize(c.Subject); subj != "" && containsToken(norm, subj) {
			bySubject = append(bySubject, Entity{EntityType: EntityClass, EntityID: c.ID, DisplayName: c.Name, Confidence: 0.75, MatchType: MatchFuzzy})
		}
	}
	if len(bySubject) > 0 {
		return bySubject, len(bySubject) > 1
	}

	var fuzzy []Entity
	for _, c := range classes {
		if sim := similarity(freeText, c.Name); sim >= fuzzyThreshold {
			fuzzy = append(fuzzy, Entity{EntityType: EntityClass, EntityID: c.ID, DisplayName: c.Name, Confidence: sim, MatchType: MatchFuzzy})
		}
	}
	return fuzzy, len(fuzzy) > 1
}

// containsToken reports whether target appears inside haystack. Both are
// expected to already be normalize()'d.
func containsToken(haystack, target string) bool {
	return target != "" && strings.Contains(haystack, target)
}

// resolveDependent runs the exact+fuzzy ladder (no alias, no grade
// expansion — those are class-specific) for a student or assignment scoped
// to a single resolved class, per §4.3's entity dependency rule.
func (r *Resolver) resolveDependent(
	ctx context.Context,
	teacherID, classID, freeText string,
	entityType EntityType,
	fetch func(ctx context.Context, teacherID, classID string) ([]NamedRef, error),
) ([]Entity, bool, error) {
	candidates, err := fetch(ctx, teacherID, classID)
	if err != nil {
		return nil, false, err
	}

	norm := normalize(freeText)
	for _, c := range candidates {
		if name := normalize(c.Name); name != "" && containsToken(norm, name) {
			return []Entity{{EntityType: entityType, EntityID: c.ID, DisplayName: c.Name, Confidence: 1.0, MatchType: MatchExact}}, false, nil
		}
	}

	var fuzzy []Entity
	for _, c := range candidates {
		if sim := similarity(freeText, c.Name); sim >= fuzzyThreshold {
			fuzzy = append(fuzzy, Entity{EntityType: entityType, EntityID: c.ID, DisplayName: c.Name, Confidence: sim, MatchType: MatchFuzzy})
		}
	}
	return fuzzy, len(fuzzy) > 1, nil
}

func countByType(entities []Entity, t EntityType) int {
	n := 0
	for _, e := range entities {
		if e.EntityType == t {
			n++
		}
	}
	return n
}

// mentionsDependentEntity is a conservative heuristic: freeText is treated
// as naming a student or assignment dependent only when at least two of its
// space-separated words start with an ASCII capital letter, as a proper name
// typically does, keeping the
// resolver from flagging missingContext on every plain sentence.
func mentionsDependentEntity(freeText string) bool {
	return containsProperNamePattern(freeText)
}

func containsProperNamePattern(s string) bool {
	words := 0
	capitalized := 0
	start := true
	for _, r := range s {
		if r == ' ' {
			start = true
			continue
		}
		if start {
			words++
			if r >= 'A' && r <= 'Z' {
				capitalized++
			}
			start = false
		}
	}
	return words >= 2 && capitalized >= 2
}
