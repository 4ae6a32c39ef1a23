// Package kafka publishes run-engine documents to a Kafka cluster.
//
// Beamlines forward every document produced during a run to the topic
// "<beamline>.runengine.documents" so downstream consumers can archive and
// process them. All documents of one run share a partition key, the run's
// start-document UID, which keeps them ordered within a partition.
//
// Broker settings come from a per-beamline YAML file:
//
//	beamline: TST
//	abort_run_on_kafka_exception: true
//	bootstrap_servers:
//	  - kafka1:9092
//	  - kafka2:9092
//	runengine_producer_config:
//	  acks: -1
//	  compression: snappy
//	  message_timeout_ms: 3000
//
// The abort flag decides what a delivery failure does to the run in
// progress: when true, the failure is surfaced by the next Publish call so
// the caller can abort the run; when false, failures are only logged and
// counted.
//
// Usage:
//
//	cfg, err := kafka.ReadConfigFile("/etc/beamline/kafka.yml")
//	if err != nil {
//		return err
//	}
//
//	pub, err := kafka.NewDocumentPublisher(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pub.Close()
//
//	err = pub.Publish("start", startDoc)
package kafka
