package portal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawProcess is the basic information the portal holds for a case.
type RawProcess struct {
	ProcessID        int64
	ConnectionID     int64
	CaseNumber       string
	FilingDate       string
	LastActivityDate string
	Court            string
	Department       string
	PartiesText      string
	RowCount         int64
	IsPrivate        bool
}

type RawActivity struct {
	ActivityID   int64
	Sequence     int64
	Date         string
	Description  string
	Annotation   string
	TermStart    string
	TermEnd      string
	RuleCode     string
	HasDocuments bool
	FolioCount   int64
}

type RawSubject struct {
	SubjectID         int64
	Name              string
	Type              string
	IDNumber          string
	IDType            string
	Representative    string
	HasRepresentative bool
}

// RawDocument is a document attached to one activity. ActivityID is the
// portal activity it was requested for.
type RawDocument struct {
	DocumentID int64
	ActivityID int64
	Filename   string
	Type       string
	URL        string
	Size       int64
	Extension  string
	Date       string
}

// Wire shapes. Field types are lenient because the portal is not consistent
// about numbers, booleans and strings between endpoints or over time.

type processWire struct {
	IDProceso            flexInt64  `json:"idProceso"`
	IDConexion           flexInt64  `json:"idConexion"`
	LlaveProceso         flexString `json:"llaveProceso"`
	FechaProceso         flexString `json:"fechaProceso"`
	FechaUltimaActuacion flexString `json:"fechaUltimaActuacion"`
	Despacho             flexString `json:"despacho"`
	Departamento         flexString `json:"departamento"`
	SujetosProcesales    flexString `json:"sujetosProcesales"`
	CantFilas            flexInt64  `json:"cantFilas"`
	EsPrivado            flexBool   `json:"esPrivado"`
}

func (w processWire) raw() RawProcess {
	return RawProcess{
		ProcessID:        int64(w.IDProceso),
		ConnectionID:     int64(w.IDConexion),
		CaseNumber:       string(w.LlaveProceso),
		FilingDate:       string(w.FechaProceso),
		LastActivityDate: string(w.FechaUltimaActuacion),
		Court:            string(w.Despacho),
		Department:       string(w.Departamento),
		PartiesText:      string(w.SujetosProcesales),
		RowCount:         int64(w.CantFilas),
		IsPrivate:        bool(w.EsPrivado),
	}
}

type activityWire struct {
	IDActuacion          flexInt64  `json:"idActuacion"`
	ConsActuacion        flexInt64  `json:"consActuacion"`
	FechaActuacion       flexString `json:"fechaActuacion"`
	Actuacion            flexString `json:"actuacion"`
	Anotacion            flexString `json:"anotacion"`
	FechaInicioTermino   flexString `json:"fechaInicioTermino"`
	FechaFinalizaTermino flexString `json:"fechaFinalizaTermino"`
	CodigoRegla          flexString `json:"codigoRegla"`
	ConDocumentos        flexBool   `json:"conDocumentos"`
	CantFolios           flexInt64  `json:"cantFolios"`
}

func (w activityWire) raw() RawActivity {
	return RawActivity{
		ActivityID:   int64(w.IDActuacion),
		Sequence:     int64(w.ConsActuacion),
		Date:         string(w.FechaActuacion),
		Description:  string(w.Actuacion),
		Annotation:   string(w.Anotacion),
		TermStart:    string(w.FechaInicioTermino),
		TermEnd:      string(w.FechaFinalizaTermino),
		RuleCode:     string(w.CodigoRegla),
		HasDocuments: bool(w.ConDocumentos),
		FolioCount:   int64(w.CantFolios),
	}
}

type subjectWire struct {
	LnIDSujetoProceso    flexInt64  `json:"lnIdSujetoProceso"`
	LsNombreSujeto       flexString `json:"lsNombreSujeto"`
	LsTipoSujeto         flexString `json:"lsTipoSujeto"`
	LsIdentificacion     flexString `json:"lsIdentificacion"`
	LsTipoIdentificacion flexString `json:"lsTipoIdentificacion"`
	LsApoderado          flexString `json:"lsApoderado"`
	LbTieneApoderado     flexBool   `json:"lbTieneApoderado"`
}

func (w subjectWire) raw() RawSubject {
	return RawSubject{
		SubjectID:         int64(w.LnIDSujetoProceso),
		Name:              string(w.LsNombreSujeto),
		Type:              string(w.LsTipoSujeto),
		IDNumber:          string(w.LsIdentificacion),
		IDType:            string(w.LsTipoIdentificacion),
		Representative:    string(w.LsApoderado),
		HasRepresentative: bool(w.LbTieneApoderado),
	}
}

type documentWire struct {
	LnIDDocumento      flexInt64  `json:"lnIdDocumento"`
	LsNombreArchivo    flexString `json:"lsNombreArchivo"`
	LsTipoDocumento    flexString `json:"lsTipoDocumento"`
	LsURLDescarga      flexString `json:"lsUrlDescarga"`
	LnTamanoArchivo    flexInt64  `json:"lnTamanoArchivo"`
	LsExtensionArchivo flexString `json:"lsExtensionArchivo"`
	LdFechaDocumento   flexString `json:"ldFechaDocumento"`
}

func (w documentWire) raw(activityID int64) RawDocument {
	return RawDocument{
		DocumentID: int64(w.LnIDDocumento),
		ActivityID: activityID,
		Filename:   string(w.LsNombreArchivo),
		Type:       string(w.LsTipoDocumento),
		URL:        string(w.LsURLDescarga),
		Size:       int64(w.LnTamanoArchivo),
		Extension:  string(w.LsExtensionArchivo),
		Date:       string(w.LdFechaDocumento),
	}
}

// successEnvelope is the shape of the v1 Process endpoints.
type successEnvelope[T any] struct {
	IsSuccess flexBool `json:"isSuccess"`
	LsData    []T      `json:"lsData"`
}

// flexInt64 accepts numbers, numeric strings and null.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(b, `"`)))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt64(n)
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = flexInt64(fl)
		return nil
	}
	// unparseable values decay to zero rather than failing the whole payload
	*f = 0
	return nil
}

// flexBool accepts JSON booleans, "S"/"N", "SI"/"NO", "true"/"false" and 1/0.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(bytes.Trim(b, `"`))))
	switch s {
	case "true", "s", "si", "sí", "y", "yes", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// flexString accepts strings, numbers, booleans and null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	s := strings.TrimSpace(string(b))
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}

// decodeList reads either a bare JSON array or an object holding the array
// under key.
func decodeList[T any](body []byte, key string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []T{}, nil
	}

	var items []T
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		return nonNil(items), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	raw, ok := envelope[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []T{}, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
