package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"aim-edu-backend/internal/models"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Known column synonyms from the ZipGrade export format. Matching is
// case-insensitive on trimmed headers; the first header matching a list wins
// and later duplicates are ignored.
var (
	studentIDColumns = []string{"ExternalId", "External ID", "ZipGrade ID", "Student ID", "StudentId"}
	firstNameColumns = []string{"FirstName", "First Name", "First"}
	lastNameColumns  = []string{"LastName", "Last Name", "Last"}
	earnedColumns    = []string{"EarnedPts", "Earned Points", "Earned", "Points Earned", "Score"}
	maxColumns       = []string{"PossiblePts", "Possible Points", "Max Points", "Possible", "Max"}
	percentColumns   = []string{"Percent", "Percentage", "Pct", "%"}
	classColumns     = []string{"Class", "Section", "Period", "Grade"}
)

// Headers that must never be treated as answer columns even when unmapped.
var answerColumnDenylist = map[string]bool{
	"DATE": true, "TIME": true, "SCHOOL": true, "CLASS": true,
	"SECTION": true, "TEACHER": true, "SUBJECT": true, "EXAM": true,
}

var (
	qNumberPattern      = regexp.MustCompile(`^Q\s*[-_]?\s*\d+`)
	questionWordPattern = regexp.MustCompile(`^(QUESTION|KEY|VOPROS|ВОПРОС).*?\d+`)
	trailingNumPattern  = regexp.MustCompile(`(\d+)$`)
)

// Encodings retried in order when the requested one fails to decode.
var fallbackEncodings = []struct {
	name string
	enc  *charmap.Charmap
}{
	{"latin-1", charmap.ISO8859_1},
	{"cp1251", charmap.Windows1251},
	{"cp1252", charmap.Windows1252},
}

// ParsedResult is one answer-sheet row in parsed form.
type ParsedResult struct {
	StudentID           string            `json:"student_id"`
	StudentIDNormalized string            `json:"student_id_normalized"`
	FirstName           string            `json:"first_name"`
	LastName            string            `json:"last_name"`
	Earned              float64           `json:"earned"`
	MaxPoints           float64           `json:"max_points"`
	Percentage          float64           `json:"percentage"`
	ClassName           string            `json:"class_name"`
	Answers             map[string]string `json:"answers"`
}

// ParseResult is the full outcome of parsing one uploaded file. Errors holds
// non-fatal row-level problems; rows that parsed are always delivered.
type ParseResult struct {
	TotalQuestions int            `json:"total_questions"`
	TotalStudents  int            `json:"total_students"`
	Results        []ParsedResult `json:"results"`
	Errors         []string       `json:"errors"`
	AnswerColumns  []string       `json:"answer_columns"`
}

// MissingIDPlaceholder replaces absent student identifiers so rows with
// scores but no ID are kept rather than dropped.
const MissingIDPlaceholder = "NO_ID"

// ZipGradeParser reads a ZipGrade CSV or XLSX export. The filename is used
// only to pick the decoder; Encoding is an optional hint for CSV content.
type ZipGradeParser struct {
	content  []byte
	filename string
	Encoding string

	headers       []string
	columnMap     map[string]string
	answerColumns []string
}

func NewZipGradeParser(content []byte, filename string) *ZipGradeParser {
	return &ZipGradeParser{
		content:   content,
		filename:  strings.ToLower(filename),
		Encoding:  "utf-8",
		columnMap: make(map[string]string),
	}
}

func (p *ZipGradeParser) isSpreadsheet() bool {
	return strings.HasSuffix(p.filename, ".xlsx") || strings.HasSuffix(p.filename, ".xls")
}

// Parse decodes the file, maps known columns, detects answer columns and
// parses every row. Fatal file problems (undecodable bytes, no headers)
// return an error; per-row problems are collected in the result instead.
func (p *ZipGradeParser) Parse() (*ParseResult, error) {
	var (
		rows    []map[string]string
		rowNums []int
		err     error
	)

	if p.isSpreadsheet() {
		rows, rowNums, err = p.readXLSX()
	} else {
		rows, rowNums, err = p.readCSV()
	}
	if err != nil {
		return nil, err
	}
	if len(p.headers) == 0 {
		return nil, errors.New("empty or invalid file: no header row found")
	}

	p.mapColumns()
	p.findAnswerColumns()

	result := &ParseResult{AnswerColumns: p.answerColumns}
	for i, row := range rows {
		parsed, rowErrs := p.parseRow(row)
		for _, e := range rowErrs {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", rowNums[i], e))
		}
		if parsed != nil {
			result.Results = append(result.Results, *parsed)
		}
	}

	p.applyMaxPointsCorrection(result)

	result.TotalStudents = len(result.Results)
	return result, nil
}

// applyMaxPointsCorrection guards against false-positive column detection:
// if more answer columns were detected than the modal max-points value across
// rows, the column list is truncated to that count and each row's answers are
// trimmed to match. When no answer columns were found at all, the modal
// max-points value stands in as the question count.
func (p *ZipGradeParser) applyMaxPointsCorrection(result *ParseResult) {
	modalMax := 0
	counts := make(map[int]int)
	for _, r := range result.Results {
		if r.MaxPoints > 0 {
			v := int(r.MaxPoints)
			counts[v]++
			if counts[v] > counts[modalMax] {
				modalMax = v
			}
		}
	}

	if modalMax > 0 && len(p.answerColumns) > modalMax {
		p.answerColumns = p.answerColumns[:modalMax]
		result.AnswerColumns = p.answerColumns
		for i := range result.Results {
			for key := range result.Results[i].Answers {
				if n, err := strconv.Atoi(key); err == nil && n > modalMax {
					delete(result.Results[i].Answers, key)
				}
			}
		}
	}

	result.TotalQuestions = len(p.answerColumns)
	if result.TotalQuestions == 0 {
		result.TotalQuestions = modalMax
	}
}

func (p *ZipGradeParser) readCSV() ([]map[string]string, []int, error) {
	text, err := p.decodeText()
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	p.headers = records[0]
	var rows []map[string]string
	var rowNums []int
	for i, record := range records[1:] {
		row := make(map[string]string, len(p.headers))
		for j, header := range p.headers {
			if j < len(record) {
				row[header] = record[j]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
		rowNums = append(rowNums, i+2)
	}
	return rows, rowNums, nil
}

func (p *ZipGradeParser) readXLSX() ([]map[string]string, []int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(p.content))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read spreadsheet: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	p.headers = records[0]
	var rows []map[string]string
	var rowNums []int
	for i, record := range records[1:] {
		row := make(map[string]string, len(p.headers))
		for j, header := range p.headers {
			if j < len(record) {
				row[header] = record[j]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
		rowNums = append(rowNums, i+2)
	}
	return rows, rowNums, nil
}

// decodeText decodes CSV bytes using the requested encoding, then the fixed
// fallback sequence, before declaring the file unreadable. A leading BOM is
// always stripped.
func (p *ZipGradeParser) decodeText() (string, error) {
	if enc := charmapFor(p.Encoding); enc != nil {
		if text, err := decodeWith(enc.NewDecoder(), p.content); err == nil {
			return stripBOM(text), nil
		}
	} else if utf8.Valid(p.content) {
		return stripBOM(string(p.content)), nil
	}

	for _, fb := range fallbackEncodings {
		if text, err := decodeWith(fb.enc.NewDecoder(), p.content); err == nil {
			p.Encoding = fb.name
			return stripBOM(text), nil
		}
	}
	return "", errors.New("could not decode file: not a valid CSV or XLSX file")
}

func charmapFor(name string) *charmap.Charmap {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "latin-1", "iso-8859-1":
		return charmap.ISO8859_1
	case "cp1251", "windows-1251":
		return charmap.Windows1251
	case "cp1252", "windows-1252":
		return charmap.Windows1252
	default:
		return nil
	}
}

func decodeWith(dec *encoding.Decoder, content []byte) (string, error) {
	out, err := dec.Bytes(content)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func (p *ZipGradeParser) mapColumns() {
	fields := []struct {
		name     string
		synonyms []string
	}{
		{"student_id", studentIDColumns},
		{"first_name", firstNameColumns},
		{"last_name", lastNameColumns},
		{"earned", earnedColumns},
		{"max", maxColumns},
		{"percent", percentColumns},
		{"class", classColumns},
	}

	for _, header := range p.headers {
		headerLower := strings.ToLower(strings.TrimSpace(header))
		for _, field := range fields {
			if _, done := p.columnMap[field.name]; done {
				continue
			}
			for _, syn := range field.synonyms {
				if strings.ToLower(syn) == headerLower {
					p.columnMap[field.name] = header
					break
				}
			}
		}
	}
}

// findAnswerColumns classifies unmapped headers with an ordered rule chain:
// "Q" plus digits, a question/key word plus digits, a bare number, or a
// trailing digit run. Candidates sort ascending by their trailing number so
// Q10 lands after Q2, not between Q1 and Q2.
func (p *ZipGradeParser) findAnswerColumns() {
	mapped := make(map[string]bool, len(p.columnMap))
	for _, header := range p.columnMap {
		mapped[header] = true
	}

	var candidates []string
	for _, header := range p.headers {
		if mapped[header] {
			continue
		}
		stripped := strings.TrimSpace(header)
		upper := strings.ToUpper(stripped)
		if answerColumnDenylist[upper] {
			continue
		}

		switch {
		case qNumberPattern.MatchString(upper):
			candidates = append(candidates, header)
		case questionWordPattern.MatchString(upper):
			candidates = append(candidates, header)
		case isDigits(stripped):
			candidates = append(candidates, header)
		case trailingNumPattern.MatchString(stripped):
			candidates = append(candidates, header)
		}
	}

	sortByTrailingNumber(candidates)
	p.answerColumns = candidates
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortByTrailingNumber(columns []string) {
	num := func(col string) int {
		m := trailingNumPattern.FindStringSubmatch(strings.TrimSpace(col))
		if m == nil {
			return 999999 // no parsable suffix sorts last
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 999999
		}
		return n
	}
	sort.SliceStable(columns, func(i, j int) bool {
		return num(columns[i]) < num(columns[j])
	})
}

// parseRow turns one raw row into a ParsedResult. A nil result means the row
// was skipped (entirely empty). Numeric problems are reported as warnings and
// the field falls back to zero; the row itself is kept.
func (p *ZipGradeParser) parseRow(row map[string]string) (*ParsedResult, []string) {
	var rowErrs []string

	studentID := ""
	if col, ok := p.columnMap["student_id"]; ok {
		studentID = strings.TrimSpace(row[col])
	}
	if studentID == "" && rowIsEmpty(row) {
		return nil, nil
	}
	if studentID == "" {
		studentID = MissingIDPlaceholder
	}

	firstName := ""
	if col, ok := p.columnMap["first_name"]; ok {
		firstName = strings.TrimSpace(row[col])
	}
	lastName := ""
	if col, ok := p.columnMap["last_name"]; ok {
		lastName = strings.TrimSpace(row[col])
	}

	earned := 0.0
	if col, ok := p.columnMap["earned"]; ok {
		v, err := parseDecimal(row[col])
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("invalid earned points value %q", row[col]))
		} else {
			earned = v
		}
	}

	maxPoints := 0.0
	if col, ok := p.columnMap["max"]; ok {
		v, err := parseDecimal(row[col])
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("invalid max points value %q", row[col]))
		} else {
			maxPoints = v
		}
	}

	percentage := 0.0
	if col, ok := p.columnMap["percent"]; ok {
		v, err := parseDecimal(strings.ReplaceAll(row[col], "%", ""))
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("invalid percent value %q", row[col]))
		} else {
			percentage = v
		}
	} else if maxPoints > 0 {
		percentage = earned / maxPoints * 100
	}

	className := ""
	if col, ok := p.columnMap["class"]; ok {
		className = strings.TrimSpace(row[col])
	}

	answers := make(map[string]string, len(p.answerColumns))
	for i, col := range p.answerColumns {
		answers[strconv.Itoa(i+1)] = strings.ToUpper(strings.TrimSpace(row[col]))
	}

	return &ParsedResult{
		StudentID:           studentID,
		StudentIDNormalized: models.NormalizeStudentID(studentID),
		FirstName:           firstName,
		LastName:            lastName,
		Earned:              earned,
		MaxPoints:           maxPoints,
		Percentage:          round2(percentage),
		ClassName:           className,
		Answers:             answers,
	}, rowErrs
}

func rowIsEmpty(row map[string]string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseDecimal accepts a comma as the decimal separator. Empty values are
// zero, not errors.
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
