package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CaseRecord is one judicial process keyed by its portal case number.
type CaseRecord struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CaseNumber         string     `json:"case_number" gorm:"uniqueIndex;not null"`
	PortalProcessID    int64      `json:"portal_process_id"`
	PortalConnectionID int64      `json:"portal_connection_id"`
	FilingDate         *time.Time `json:"filing_date"`
	LastActivityDate   *time.Time `json:"last_activity_date"`
	Court              string     `json:"court" gorm:"index"`
	Department         string     `json:"department"`
	ProcessType        string     `json:"process_type"`
	ProcessClass       string     `json:"process_class"`
	Plaintiff          string     `json:"plaintiff"`
	Defendant          string     `json:"defendant"`
	PartiesText        string     `json:"parties_text" gorm:"type:text"`
	FolioCount         int        `json:"folio_count"`
	IsPrivate          bool       `json:"is_private"`
	Status             string     `json:"status"`
	PortalURL          string     `json:"portal_url"`
	SyncGeneration     string     `json:"sync_generation"`
	LastSyncedAt       time.Time  `json:"last_synced_at"`
}

type Activity struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	CaseID           uint       `json:"case_id" gorm:"index;not null"`
	Generation       string     `json:"-" gorm:"index"`
	PortalActivityID int64      `json:"portal_activity_id"`
	Sequence         int        `json:"sequence"`
	ActivityDate     *time.Time `json:"activity_date"`
	Description      string     `json:"description" gorm:"type:text"`
	Annotation       string     `json:"annotation" gorm:"type:text"`
	TermStart        *time.Time `json:"term_start"`
	TermEnd          *time.Time `json:"term_end"`
	RuleCode         string     `json:"rule_code"`
	HasDocuments     bool       `json:"has_documents"`
	FolioCount       int        `json:"folio_count"`
	Type             string     `json:"type"`
}

type Subject struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	CaseID            uint   `json:"case_id" gorm:"index;not null"`
	Generation        string `json:"-" gorm:"index"`
	PortalSubjectID   int64  `json:"portal_subject_id"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	PortalType        string `json:"portal_type"`
	IDNumber          string `json:"id_number"`
	IDType            string `json:"id_type"`
	Representative    string `json:"representative"`
	HasRepresentative bool   `json:"has_representative"`
}

type Document struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	CaseID           uint       `json:"case_id" gorm:"index;not null"`
	ActivityID       *uint      `json:"activity_id"`
	Generation       string     `json:"-" gorm:"index"`
	PortalDocumentID int64      `json:"portal_document_id"`
	PortalActivityID int64      `json:"portal_activity_id"`
	Filename         string     `json:"filename"`
	Type             string     `json:"type"`
	DownloadURL      string     `json:"download_url"`
	Size             int64      `json:"size"`
	Extension        string     `json:"extension"`
	DocumentDate     *time.Time `json:"document_date"`
}

// ConsultationAudit is append-only. The store exposes no update or delete.
type ConsultationAudit struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	RequesterID  *string        `json:"requester_id" gorm:"index"`
	CaseID       *uint          `json:"case_id" gorm:"index"`
	CaseNumber   string         `json:"case_number"`
	Kind         string         `json:"kind"`
	IPAddress    string         `json:"ip_address"`
	UserAgent    string         `json:"user_agent"`
	Status       string         `json:"status"`
	Source       string         `json:"source"`
	ErrorMessage string         `json:"error_message"`
	Details      datatypes.JSON `json:"details"`
	QueryTime    time.Time      `json:"query_time"`
}

// MonitoredCase links a requester to a case they follow.
type MonitoredCase struct {
	gorm.Model
	RequesterID string      `json:"requester_id" gorm:"uniqueIndex:idx_monitor_requester_case;not null"`
	CaseID      uint        `json:"case_id" gorm:"uniqueIndex:idx_monitor_requester_case;not null"`
	Role        string      `json:"role"`
	Alias       string      `json:"alias"`
	Case        *CaseRecord `json:"case,omitempty" gorm:"foreignKey:CaseID"`
}

// CaseBundle is a case with its three child collections. It is both the
// normalized input to a sync and the view returned to callers.
type CaseBundle struct {
	Case       CaseRecord `json:"case"`
	Activities []Activity `json:"activities"`
	Subjects   []Subject  `json:"subjects"`
	Documents  []Document `json:"documents"`
}

func (CaseRecord) TableName() string {
	return "case_records"
}

func (Activity) TableName() string {
	return "case_activities"
}

func (Subject) TableName() string {
	return "case_subjects"
}

func (Document) TableName() string {
	return "case_documents"
}

func (ConsultationAudit) TableName() string {
	return "consultation_audits"
}

func (MonitoredCase) TableName() string {
	return "monitored_cases"
}
