package kafka

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned for configuration files with missing
	// required sections or out-of-range values.
	ErrInvalidConfig = errors.New("kafka: invalid configuration")

	// ErrPublisherClosed is returned by Publish and Close after the publisher
	// has been closed.
	ErrPublisherClosed = errors.New("kafka: publisher is closed")

	// ErrDeliveryFailed is returned by Publish when a previous document of the
	// current run could not be delivered and the configuration asks for the
	// run to be aborted.
	ErrDeliveryFailed = errors.New("kafka: document delivery failed, aborting run")
)

// Config holds the beamline Kafka settings, usually loaded from a YAML file
// by ReadConfigFile.
type Config struct {
	// Beamline is the short beamline name used to build the topic, for
	// example "TST".
	Beamline string `yaml:"beamline"`

	// AbortOnError decides whether a delivery failure surfaces to the caller
	// of Publish (aborting the run) or is only logged and counted.
	AbortOnError *bool `yaml:"abort_run_on_kafka_exception"`

	// BootstrapServers lists the broker addresses.
	BootstrapServers []string `yaml:"bootstrap_servers"`

	// Producer carries the producer overrides. The section must be present,
	// every field in it is optional.
	Producer *ProducerConfig `yaml:"runengine_producer_config"`
}

// ProducerConfig overrides producer settings. Zero values keep the client
// defaults.
type ProducerConfig struct {
	// Acks is the broker acknowledgement level: 0 none, 1 leader only,
	// -1 full ISR. The default is 1.
	Acks *int `yaml:"acks"`

	// Compression names the codec: none, gzip, snappy, lz4 or zstd.
	Compression string `yaml:"compression"`

	// MessageTimeoutMS bounds how long the broker may take to acknowledge a
	// message, in milliseconds.
	MessageTimeoutMS int `yaml:"message_timeout_ms"`

	// FlushFrequencyMS batches messages for up to this many milliseconds
	// before flushing them to the broker.
	FlushFrequencyMS int `yaml:"flush_frequency_ms"`

	// MaxMessageBytes is the largest message the producer will send.
	MaxMessageBytes int `yaml:"max_message_bytes"`

	// RetryMax is how many times to retry a failed delivery. The default
	// is 3.
	RetryMax *int `yaml:"retry_max"`
}

// ReadConfigFile loads and validates a beamline Kafka configuration file.
func ReadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kafka: read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("kafka: parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every required section is present and that the
// producer overrides are in range.
func (c *Config) Validate() error {
	var missing []string
	if c.Beamline == "" {
		missing = append(missing, "beamline")
	}
	if c.AbortOnError == nil {
		missing = append(missing, "abort_run_on_kafka_exception")
	}
	if len(c.BootstrapServers) == 0 {
		missing = append(missing, "bootstrap_servers")
	}
	if c.Producer == nil {
		missing = append(missing, "runengine_producer_config")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required sections: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	if c.Producer.Acks != nil {
		switch *c.Producer.Acks {
		case -1, 0, 1:
		default:
			return fmt.Errorf("%w: acks must be -1, 0 or 1, got %d", ErrInvalidConfig, *c.Producer.Acks)
		}
	}
	if _, err := compressionCodec(c.Producer.Compression); err != nil {
		return err
	}
	if c.Producer.MessageTimeoutMS < 0 {
		return fmt.Errorf("%w: message_timeout_ms is negative", ErrInvalidConfig)
	}
	if c.Producer.FlushFrequencyMS < 0 {
		return fmt.Errorf("%w: flush_frequency_ms is negative", ErrInvalidConfig)
	}
	if c.Producer.MaxMessageBytes < 0 {
		return fmt.Errorf("%w: max_message_bytes is negative", ErrInvalidConfig)
	}
	if c.Producer.RetryMax != nil && *c.Producer.RetryMax < 0 {
		return fmt.Errorf("%w: retry_max is negative", ErrInvalidConfig)
	}

	return nil
}

// Topic returns the document topic for the configured beamline.
func (c *Config) Topic() string {
	return strings.ToLower(c.Beamline) + ".runengine.documents"
}

// saramaConfig maps the overrides onto a sarama client configuration.
// Validate must have accepted the Config first.
func (c *Config) saramaConfig() *sarama.Config {
	sconf := sarama.NewConfig()
	sconf.ClientID = "go-beamline-" + strings.ToLower(c.Beamline)
	sconf.Producer.Return.Successes = true
	sconf.Producer.Return.Errors = true
	sconf.Producer.RequiredAcks = sarama.WaitForLocal

	p := c.Producer
	if p.Acks != nil {
		sconf.Producer.RequiredAcks = sarama.RequiredAcks(*p.Acks)
	}
	codec, _ := compressionCodec(p.Compression)
	sconf.Producer.Compression = codec
	if p.MessageTimeoutMS > 0 {
		sconf.Producer.Timeout = time.Duration(p.MessageTimeoutMS) * time.Millisecond
	}
	if p.FlushFrequencyMS > 0 {
		sconf.Producer.Flush.Frequency = time.Duration(p.FlushFrequencyMS) * time.Millisecond
	}
	if p.MaxMessageBytes > 0 {
		sconf.Producer.MaxMessageBytes = p.MaxMessageBytes
	}
	if p.RetryMax != nil {
		sconf.Producer.Retry.Max = *p.RetryMax
	}

	return sconf
}

func compressionCodec(name string) (sarama.CompressionCodec, error) {
	switch name {
	case "", "none":
		return sarama.CompressionNone, nil
	case "gzip":
		return sarama.CompressionGZIP, nil
	case "snappy":
		return sarama.CompressionSnappy, nil
	case "lz4":
		return sarama.CompressionLZ4, nil
	case "zstd":
		return sarama.CompressionZSTD, nil
	default:
		return sarama.CompressionNone, fmt.Errorf("%w: unknown compression codec %q", ErrInvalidConfig, name)
	}
}
