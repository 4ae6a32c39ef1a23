package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "kafka.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestReadConfigFile(t *testing.T) {
	require := require.New(t)

	path := writeConfigFile(t, `
beamline: TST
abort_run_on_kafka_exception: true
bootstrap_servers:
  - kafka1.nsls2.local:9092
  - kafka2.nsls2.local:9092
runengine_producer_config:
  acks: -1
  compression: snappy
  message_timeout_ms: 3000
  flush_frequency_ms: 100
  max_message_bytes: 1048576
  retry_max: 5
`)

	cfg, err := ReadConfigFile(path)
	require.NoError(err)

	require.Equal("TST", cfg.Beamline)
	require.NotNil(cfg.AbortOnError)
	require.True(*cfg.AbortOnError)
	require.Equal([]string{"kafka1.nsls2.local:9092", "kafka2.nsls2.local:9092"}, cfg.BootstrapServers)
	require.NotNil(cfg.Producer)
	require.Equal(-1, *cfg.Producer.Acks)
	require.Equal("snappy", cfg.Producer.Compression)
	require.Equal(3000, cfg.Producer.MessageTimeoutMS)
	require.Equal(100, cfg.Producer.FlushFrequencyMS)
	require.Equal(1048576, cfg.Producer.MaxMessageBytes)
	require.Equal(5, *cfg.Producer.RetryMax)

	require.Equal("tst.runengine.documents", cfg.Topic())
}

func TestReadConfigFile_MissingFile(t *testing.T) {
	_, err := ReadConfigFile(filepath.Join(t.TempDir(), "absent.yml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigFile_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "beamline: [unterminated")
	_, err := ReadConfigFile(path)
	require.ErrorContains(t, err, "parse config file")
}

func TestReadConfigFile_MissingSections(t *testing.T) {
	require := require.New(t)

	path := writeConfigFile(t, "beamline: TST\n")
	_, err := ReadConfigFile(path)
	require.ErrorIs(err, ErrInvalidConfig)
	require.ErrorContains(err, "abort_run_on_kafka_exception")
	require.ErrorContains(err, "bootstrap_servers")
	require.ErrorContains(err, "runengine_producer_config")
}

func TestConfig_Validate(t *testing.T) {
	abort := false
	valid := func() *Config {
		return &Config{
			Beamline:         "TST",
			AbortOnError:     &abort,
			BootstrapServers: []string{"localhost:9092"},
			Producer:         &ProducerConfig{},
		}
	}

	t.Run("EmptyProducerSectionIsValid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("BadAcks", func(t *testing.T) {
		acks := 2
		cfg := valid()
		cfg.Producer.Acks = &acks
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("BadCompression", func(t *testing.T) {
		cfg := valid()
		cfg.Producer.Compression = "brotli"
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrInvalidConfig)
		require.ErrorContains(t, err, "brotli")
	})

	t.Run("NegativeTimeout", func(t *testing.T) {
		cfg := valid()
		cfg.Producer.MessageTimeoutMS = -1
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("NegativeRetryMax", func(t *testing.T) {
		retry := -3
		cfg := valid()
		cfg.Producer.RetryMax = &retry
		require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})
}

func TestConfig_SaramaConfig(t *testing.T) {
	require := require.New(t)

	abort := true
	acks := -1
	retry := 5
	cfg := &Config{
		Beamline:         "TST",
		AbortOnError:     &abort,
		BootstrapServers: []string{"localhost:9092"},
		Producer: &ProducerConfig{
			Acks:             &acks,
			Compression:      "snappy",
			MessageTimeoutMS: 3000,
			FlushFrequencyMS: 100,
			MaxMessageBytes:  1048576,
			RetryMax:         &retry,
		},
	}
	require.NoError(cfg.Validate())

	sconf := cfg.saramaConfig()
	require.Equal("go-beamline-tst", sconf.ClientID)
	require.True(sconf.Producer.Return.Successes)
	require.True(sconf.Producer.Return.Errors)
	require.Equal(sarama.WaitForAll, sconf.Producer.RequiredAcks)
	require.Equal(sarama.CompressionSnappy, sconf.Producer.Compression)
	require.Equal(3*time.Second, sconf.Producer.Timeout)
	require.Equal(100*time.Millisecond, sconf.Producer.Flush.Frequency)
	require.Equal(1048576, sconf.Producer.MaxMessageBytes)
	require.Equal(5, sconf.Producer.Retry.Max)
}

func TestConfig_SaramaConfigDefaults(t *testing.T) {
	require := require.New(t)

	abort := false
	cfg := &Config{
		Beamline:         "TST",
		AbortOnError:     &abort,
		BootstrapServers: []string{"localhost:9092"},
		Producer:         &ProducerConfig{},
	}
	require.NoError(cfg.Validate())

	sconf := cfg.saramaConfig()
	require.Equal(sarama.WaitForLocal, sconf.Producer.RequiredAcks)
	require.Equal(sarama.CompressionNone, sconf.Producer.Compression)
}
