package normalize

import (
	"strings"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/internal/portal"
)

const (
	RolePlaintiff = "plaintiff"
	RoleDefendant = "defendant"
	RoleOther     = "other"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusClosed   = "closed"
	StatusArchived = "archived"
)

// Status maps a portal status word to the local status. Unknown or empty
// values are active, which is what the portal implies for listed cases.
func Status(s string) string {
	switch key(s) {
	case "inactivo", "inactive":
		return StatusInactive
	case "terminado", "cerrado", "closed":
		return StatusClosed
	case "archivado", "archived":
		return StatusArchived
	default:
		return StatusActive
	}
}

// SubjectRole maps the portal subject type ("Demandante", "Accionado", ...)
// to plaintiff, defendant or other.
func SubjectRole(portalType string) string {
	k := key(portalType)
	for _, label := range plaintiffLabels {
		if strings.Contains(k, label) {
			return RolePlaintiff
		}
	}
	for _, label := range defendantLabels {
		if strings.Contains(k, label) {
			return RoleDefendant
		}
	}
	return RoleOther
}

// Case assembles the normalized bundle for one scrape. p must not be nil;
// missing values are replaced by sentinels and unparseable dates are left
// nil.
func Case(caseNumber, portalURL string, p *portal.RawProcess, activities []portal.RawActivity, subjects []portal.RawSubject, documents []portal.RawDocument) *database.CaseBundle {
	rec := database.CaseRecord{
		CaseNumber:         strings.TrimSpace(caseNumber),
		PortalProcessID:    p.ProcessID,
		PortalConnectionID: p.ConnectionID,
		FilingDate:         ParseDatePtr(p.FilingDate),
		LastActivityDate:   ParseDatePtr(p.LastActivityDate),
		Court:              orDefault(p.Court, CourtNotAvailable),
		Department:         p.Department,
		// The basic-info payload has no process type; the department is the
		// closest grouping it offers.
		ProcessType: orDefault(p.Department, TypeNotAvailable),
		PartiesText: p.PartiesText,
		FolioCount:  int(p.RowCount),
		IsPrivate:   p.IsPrivate,
		Status:      StatusActive,
		PortalURL:   portalURL,
	}
	rec.Plaintiff, rec.Defendant = ParseParties(p.PartiesText)

	bundle := &database.CaseBundle{
		Activities: make([]database.Activity, 0, len(activities)),
		Subjects:   make([]database.Subject, 0, len(subjects)),
		Documents:  make([]database.Document, 0, len(documents)),
	}

	for _, a := range activities {
		bundle.Activities = append(bundle.Activities, Activity(a))
	}
	for _, s := range subjects {
		bundle.Subjects = append(bundle.Subjects, Subject(s))
	}
	for _, d := range documents {
		bundle.Documents = append(bundle.Documents, Document(d))
	}

	// Fill parties from the subject list when the text blob lacked them.
	for _, s := range bundle.Subjects {
		if s.Role == RolePlaintiff && rec.Plaintiff == NotAvailable && s.Name != "" {
			rec.Plaintiff = s.Name
		}
		if s.Role == RoleDefendant && rec.Defendant == NotAvailable && s.Name != "" {
			rec.Defendant = s.Name
		}
	}

	if rec.LastActivityDate == nil {
		rec.LastActivityDate = latest(bundle.Activities)
	}

	bundle.Case = rec
	return bundle
}

func Activity(a portal.RawActivity) database.Activity {
	kind := ClassifyActivity(a.Description)
	if kind == ActivityOther && a.Annotation != "" {
		kind = ClassifyActivity(a.Annotation)
	}
	return database.Activity{
		PortalActivityID: a.ActivityID,
		Sequence:         int(a.Sequence),
		ActivityDate:     ParseDatePtr(a.Date),
		Description:      a.Description,
		Annotation:       a.Annotation,
		TermStart:        ParseDatePtr(a.TermStart),
		TermEnd:          ParseDatePtr(a.TermEnd),
		RuleCode:         a.RuleCode,
		HasDocuments:     a.HasDocuments,
		FolioCount:       int(a.FolioCount),
		Type:             string(kind),
	}
}

func Subject(s portal.RawSubject) database.Subject {
	return database.Subject{
		PortalSubjectID:   s.SubjectID,
		Name:              s.Name,
		Role:              SubjectRole(s.Type),
		PortalType:        s.Type,
		IDNumber:          s.IDNumber,
		IDType:            s.IDType,
		Representative:    s.Representative,
		HasRepresentative: s.HasRepresentative || s.Representative != "",
	}
}

func Document(d portal.RawDocument) database.Document {
	ext := d.Extension
	if ext == "" {
		if i := strings.LastIndex(d.Filename, "."); i >= 0 {
			ext = d.Filename[i:]
		}
	}
	return database.Document{
		PortalDocumentID: d.DocumentID,
		PortalActivityID: d.ActivityID,
		Filename:         d.Filename,
		Type:             d.Type,
		DownloadURL:      d.URL,
		Size:             d.Size,
		Extension:        strings.ToLower(ext),
		DocumentDate:     ParseDatePtr(d.Date),
	}
}

func latest(activities []database.Activity) *time.Time {
	var out *time.Time
	for i := range activities {
		d := activities[i].ActivityDate
		if d != nil && (out == nil || d.After(*out)) {
			out = d
		}
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
