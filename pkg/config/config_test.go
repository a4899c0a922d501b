package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) SetupTest() {
	for _, b := range bindings {
		s.T().Setenv(b.env, "")
		s.Require().NoError(os.Unsetenv(b.env))
	}
}

func (s *ConfigTestSuite) TestLoad_Defaults() {
	s.T().Setenv("REPTOR_SERVER", "https://demo.sysre.pt")
	s.T().Setenv("REPTOR_TOKEN", "token")

	cfg, err := Load()

	s.Require().NoError(err)
	s.Equal("https://demo.sysre.pt", cfg.Server)
	s.Equal("reptor", cfg.ReptorBin)
	s.Equal("python3", cfg.Python)
	s.Equal(TransportHTTP, cfg.Transport)
	s.Equal("localhost:8989", cfg.Bind)
	s.Equal(60*time.Second, cfg.DiscoveryTimeout)
	s.False(cfg.History)
	s.Empty(cfg.HistoryDB)
}

func (s *ConfigTestSuite) TestLoad_Overrides() {
	dir := s.T().TempDir()
	s.T().Setenv("REPTOR_SERVER", "https://demo.sysre.pt")
	s.T().Setenv("REPTOR_TOKEN", "token")
	s.T().Setenv("REPTOR_PROJECT_ID", "p1")
	s.T().Setenv("REPTOR_MCP_INSECURE", "true")
	s.T().Setenv("REPTOR_MCP_TRANSPORT", "STDIO")
	s.T().Setenv("REPTOR_MCP_DISCOVERY_TIMEOUT", "5s")
	s.T().Setenv("REPTOR_MCP_HISTORY", "1")
	s.T().Setenv("REPTOR_MCP_HISTORY_DB", filepath.Join(dir, "history.db"))
	s.T().Setenv("REPTOR_MAIN_PATH", dir)

	cfg, err := Load()

	s.Require().NoError(err)
	s.Equal("p1", cfg.ProjectID)
	s.True(cfg.Insecure)
	s.Equal(TransportStdio, cfg.Transport)
	s.Equal(5*time.Second, cfg.DiscoveryTimeout)
	s.True(cfg.History)
	s.Equal(filepath.Join(dir, "history.db"), cfg.HistoryDB)
}

func (s *ConfigTestSuite) TestLoad_MissingServer() {
	s.T().Setenv("REPTOR_TOKEN", "token")

	_, err := Load()

	s.Require().Error(err)
	s.Contains(err.Error(), "missing required environment variable REPTOR_SERVER")
}

func (s *ConfigTestSuite) TestLoad_MissingToken() {
	s.T().Setenv("REPTOR_SERVER", "https://demo.sysre.pt")

	_, err := Load()

	s.Require().Error(err)
	s.Contains(err.Error(), "REPTOR_TOKEN")
}

func (s *ConfigTestSuite) TestLoad_InvalidValues() {
	s.T().Setenv("REPTOR_SERVER", "not-a-url")
	s.T().Setenv("REPTOR_TOKEN", "token")
	s.T().Setenv("REPTOR_MCP_TRANSPORT", "grpc")

	_, err := Load()

	s.Require().Error(err)
	s.Contains(err.Error(), "invalid value for environment variable REPTOR_SERVER")
	s.Contains(err.Error(), "REPTOR_MCP_TRANSPORT")
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
