package templates

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tb0hdan/reptor-mcp/pkg/sysreptor"
	"github.com/tb0hdan/reptor-mcp/pkg/tools"
)

const jsonTemplate = `{
  "tags": ["web"],
  "translations": [
    {"language": "en-US", "data": {"title": "Cross-Site Scripting", "severity": "high"}},
    {"language": "de-DE", "data": {"title": "Cross-Site-Scripting"}}
  ]
}`

const tomlTemplate = `tags = ["web"]

[[translations]]
language = "en-US"
is_main = true

[translations.data]
title = "Open Redirect"
severity = "medium"
`

type UploadTestSuite struct {
	suite.Suite
	api     *httptest.Server
	tool    *Tool
	ctx     context.Context
	mu      sync.Mutex
	created []sysreptor.FindingTemplate
}

func (s *UploadTestSuite) SetupTest() {
	s.created = nil
	s.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/findingtemplates/" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("search") == "SQL Injection" {
				_, _ = io.WriteString(w, `[{"id":"t-old","translations":[{"language":"en-US","is_main":true,"data":{"title":"SQL injection"}}]}]`)
				return
			}
			_, _ = io.WriteString(w, `[]`)
		case http.MethodPost:
			var template sysreptor.FindingTemplate
			if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			template.ID = "t-new"
			s.mu.Lock()
			s.created = append(s.created, template)
			s.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(template)
		}
	}))

	client, err := sysreptor.New(sysreptor.Options{Server: s.api.URL, Token: "secret"})
	s.Require().NoError(err)

	s.tool = New(zerolog.Nop(), client, nil).(*Tool)
	s.ctx = context.Background()
}

func (s *UploadTestSuite) TearDownTest() {
	s.api.Close()
}

func (s *UploadTestSuite) TestUpload_JSONMarksFirstTranslationMain() {
	result, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: jsonTemplate})
	s.Require().NoError(err)

	var created sysreptor.FindingTemplate
	s.Require().NoError(json.Unmarshal([]byte(tools.ResultText(result)), &created))
	s.Equal("t-new", created.ID)

	s.Require().Len(s.created, 1)
	s.True(s.created[0].Translations[0].IsMain)
	s.False(s.created[0].Translations[1].IsMain)
	s.Equal([]string{"web"}, s.created[0].Tags)
}

func (s *UploadTestSuite) TestUpload_TOML() {
	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: tomlTemplate, Format: FormatTOML})
	s.Require().NoError(err)

	s.Require().Len(s.created, 1)
	s.Equal("Open Redirect", s.created[0].Main().Title())
	s.Equal("medium", s.created[0].Translations[0].Data["severity"])
}

func (s *UploadTestSuite) TestUpload_AutoDetectsTOML() {
	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: tomlTemplate})
	s.Require().NoError(err)
	s.Len(s.created, 1)
}

func (s *UploadTestSuite) TestUpload_DuplicateTitle() {
	data := `{"translations":[{"language":"en-US","data":{"title":"SQL Injection"}}]}`

	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: data})

	s.ErrorIs(err, ErrDuplicate)
	s.ErrorContains(err, "t-old")
	s.Empty(s.created)
}

func (s *UploadTestSuite) TestUpload_ParseErrorNeverCallsServer() {
	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: "{\n  \"tags\": [,]\n}", Format: FormatJSON})

	s.ErrorIs(err, ErrParse)
	s.ErrorContains(err, "line 2")
	s.Empty(s.created)
}

func (s *UploadTestSuite) TestUpload_MissingTitle() {
	data := `{"translations":[{"language":"en-US","data":{"severity":"low"}}]}`

	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: data})

	s.ErrorContains(err, "has no data.title")
	s.Empty(s.created)
}

func (s *UploadTestSuite) TestUpload_NoTranslations() {
	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: `{"tags":[]}`})
	s.ErrorContains(err, "invalid template")
}

func (s *UploadTestSuite) TestUpload_TwoMainTranslations() {
	data := `{"translations":[
		{"language":"en-US","is_main":true,"data":{"title":"A"}},
		{"language":"de-DE","is_main":true,"data":{"title":"B"}}]}`

	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: data})
	s.ErrorContains(err, "only one translation")
}

func (s *UploadTestSuite) TestUpload_InvalidFormat() {
	_, _, err := s.tool.UploadHandler(s.ctx, nil, Input{TemplateData: jsonTemplate, Format: "yaml"})
	s.ErrorContains(err, "validation error")
}

func TestUploadTestSuite(t *testing.T) {
	suite.Run(t, new(UploadTestSuite))
}

func TestParse_JSONPosition(t *testing.T) {
	_, err := Parse("{\n  \"translations\": 5\n}", FormatJSON)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, FormatJSON, parseErr.Format)
	assert.Equal(t, 2, parseErr.Line)
	assert.Positive(t, parseErr.Column)
}

func TestParse_JSONTrailingData(t *testing.T) {
	_, err := Parse(`{"tags":[]} {"tags":[]}`, FormatJSON)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParse_TOMLPosition(t *testing.T) {
	_, err := Parse("tags = [\"web\"]\nlanguage = = \"en\"\n", FormatTOML)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, FormatTOML, parseErr.Format)
	assert.Equal(t, 2, parseErr.Line)
	assert.Contains(t, parseErr.Error(), "invalid TOML template at line 2")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   \n", FormatAuto)
	assert.ErrorIs(t, err, ErrParse)
}

func TestPosition(t *testing.T) {
	line, col := position("ab\ncd", 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)

	line, col = position("abc", 0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)

	line, _ = position("abc", 99)
	assert.Equal(t, 1, line)
}
