package utils_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/treediff/internal/utils"
)

const (
	testEnvironmentPrefixConstant                  = "TREEDIFFTEST"
	testLogLevelKeyConstant                        = "common.log_level"
	testTimeoutKeyConstant                         = "scan.timeout"
	testIdentifierKeysKeyConstant                  = "scan.identifier_keys"
	testLogLevelEnvironmentConstant                = testEnvironmentPrefixConstant + "_COMMON_LOG_LEVEL"
	testTimeoutEnvironmentConstant                 = testEnvironmentPrefixConstant + "_SCAN_TIMEOUT"
	testIdentifierKeysEnvironmentConstant          = testEnvironmentPrefixConstant + "_SCAN_IDENTIFIER_KEYS"
	testDefaultLogLevelConstant                    = "info"
	testEmbeddedLogLevelConstant                   = "debug"
	testFileLogLevelConstant                       = "warn"
	testEnvironmentLogLevelConstant                = "error"
	testConfigurationNameConstant                  = "config"
	testConfigurationTypeConstant                  = "yaml"
	testConfigFileNameConstant                     = "config.yaml"
	testConfigContentTemplateConstant              = "common:\n  log_level: %s\n"
	configurationLoaderSubtestNameTemplateConstant = "%d_%s"
)

type configurationFixture struct {
	Common configurationCommonFixture `mapstructure:"common"`
	Scan   configurationScanFixture   `mapstructure:"scan"`
}

type configurationCommonFixture struct {
	LogLevel string `mapstructure:"log_level"`
}

type configurationScanFixture struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	IdentifierKeys []string      `mapstructure:"identifier_keys"`
}

func testDefaultValues() map[string]any {
	return map[string]any{
		testLogLevelKeyConstant:       testDefaultLogLevelConstant,
		testTimeoutKeyConstant:        "5m0s",
		testIdentifierKeysKeyConstant: []string{"Change-Id"},
	}
}

func TestConfigurationLoaderPrecedence(testInstance *testing.T) {
	testCases := []struct {
		name                string
		embeddedLogLevel    string
		fileLogLevel        string
		environmentLogLevel string
		expectedLogLevel    string
	}{
		{name: "defaults_apply", expectedLogLevel: testDefaultLogLevelConstant},
		{name: "embedded_overrides_defaults", embeddedLogLevel: testEmbeddedLogLevelConstant, expectedLogLevel: testEmbeddedLogLevelConstant},
		{name: "file_overrides_embedded", embeddedLogLevel: testEmbeddedLogLevelConstant, fileLogLevel: testFileLogLevelConstant, expectedLogLevel: testFileLogLevelConstant},
		{name: "environment_overrides_file", embeddedLogLevel: testEmbeddedLogLevelConstant, fileLogLevel: testFileLogLevelConstant, environmentLogLevel: testEnvironmentLogLevelConstant, expectedLogLevel: testEnvironmentLogLevelConstant},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(configurationLoaderSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			searchDirectory := testInstance.TempDir()
			configurationFilePath := ""
			if len(testCase.fileLogLevel) > 0 {
				configurationFilePath = filepath.Join(testInstance.TempDir(), testConfigFileNameConstant)
				configurationContent := fmt.Sprintf(testConfigContentTemplateConstant, testCase.fileLogLevel)
				require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(configurationContent), 0o600))
			}
			if len(testCase.environmentLogLevel) > 0 {
				testInstance.Setenv(testLogLevelEnvironmentConstant, testCase.environmentLogLevel)
			}

			configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{searchDirectory})
			if len(testCase.embeddedLogLevel) > 0 {
				configurationLoader.SetEmbeddedConfiguration([]byte(fmt.Sprintf(testConfigContentTemplateConstant, testCase.embeddedLogLevel)), testConfigurationTypeConstant)
			}

			loadedConfiguration := configurationFixture{}
			metadata, loadError := configurationLoader.LoadConfiguration(configurationFilePath, testDefaultValues(), &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedLogLevel, loadedConfiguration.Common.LogLevel)
			require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderFindsFileOnSearchPath(testInstance *testing.T) {
	emptyDirectory := testInstance.TempDir()
	configurationDirectory := testInstance.TempDir()
	configurationFilePath := filepath.Join(configurationDirectory, testConfigFileNameConstant)
	configurationContent := fmt.Sprintf(testConfigContentTemplateConstant, testFileLogLevelConstant)
	require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(configurationContent), 0o600))

	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{emptyDirectory, configurationDirectory})

	loadedConfiguration := configurationFixture{}
	metadata, loadError := configurationLoader.LoadConfiguration("", testDefaultValues(), &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, testFileLogLevelConstant, loadedConfiguration.Common.LogLevel)
	require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderDecodesDurationsAndLists(testInstance *testing.T) {
	testInstance.Setenv(testTimeoutEnvironmentConstant, "90s")
	testInstance.Setenv(testIdentifierKeysEnvironmentConstant, "Change-Id,Bug")

	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})

	loadedConfiguration := configurationFixture{}
	_, loadError := configurationLoader.LoadConfiguration("", testDefaultValues(), &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, 90*time.Second, loadedConfiguration.Scan.Timeout)
	require.Equal(testInstance, []string{"Change-Id", "Bug"}, loadedConfiguration.Scan.IdentifierKeys)
}

func TestConfigurationLoaderRejectsMalformedFile(testInstance *testing.T) {
	configurationFilePath := filepath.Join(testInstance.TempDir(), testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte("common: [unterminated\n"), 0o600))

	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

	loadedConfiguration := configurationFixture{}
	_, loadError := configurationLoader.LoadConfiguration(configurationFilePath, testDefaultValues(), &loadedConfiguration)
	require.ErrorContains(testInstance, loadError, "failed to read configuration")
}
