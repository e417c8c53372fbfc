// Command svgateway is the substation gateway daemon: it loads a
// configuration file, builds the configured breakers and protection
// relays, wires them into a Gateway, starts the MQTT/Kafka/Valkey
// telemetry bridges, and serves the status dashboard until interrupted.
// This is the long-running process the rest of the gateway/web/telemetry
// packages exist to support.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"subsv/breaker"
	"subsv/config"
	"subsv/gateway"
	"subsv/kafka"
	"subsv/logging"
	"subsv/protection"
	"subsv/web"
)

func main() {
	var (
		configPath string
		auditPath  string
	)

	root := &cobra.Command{
		Use:   "svgateway",
		Short: "Run the substation gateway: breakers, protection relays, telemetry bridges, and the status dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = config.DefaultPath()
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			gw := gateway.New(cfg, configPath)

			if auditPath != "" {
				audit, err := logging.NewFileLogger(auditPath)
				if err != nil {
					return fmt.Errorf("open audit log: %w", err)
				}
				gw.SetAuditLogger(audit)
				defer audit.Close()
			}

			breakers := make(map[string]*breaker.Model, len(cfg.Breakers))
			for _, bc := range cfg.Breakers {
				m, err := breaker.NewWithDefinition(breakerDefinition(bc))
				if err != nil {
					return fmt.Errorf("breaker %s: %w", bc.Name, err)
				}
				gw.AddBreaker(bc.Name, m)
				breakers[bc.Name] = m
			}

			for _, pc := range cfg.Protection {
				if _, ok := breakers[pc.Breaker]; !ok {
					return fmt.Errorf("protection %s: unknown breaker %q", pc.Name, pc.Breaker)
				}

				distanceRelay, err := protection.NewDistanceRelay(distanceSettings(pc))
				if err != nil {
					return fmt.Errorf("protection %s: distance settings: %w", pc.Name, err)
				}
				gw.AddDistanceRelay(pc.Name, distanceRelay)

				differentialRelay, err := protection.NewDifferentialRelay(differentialSettings(pc))
				if err != nil {
					return fmt.Errorf("protection %s: differential settings: %w", pc.Name, err)
				}
				gw.AddDifferentialRelay(pc.Name, differentialRelay)
			}

			mqttMgr := gw.GetMQTTMgr()
			mqttMgr.LoadFromConfig(cfg.MQTT)
			mqttMgr.StartAll()

			kafkaMgr := gw.GetKafkaMgr()
			kafkaMgr.LoadFromConfigs(kafkaConfigs(cfg.Kafka))
			kafkaMgr.ConnectEnabled()
			defer kafkaMgr.StopAll()

			valkeyMgr := gw.GetValkeyMgr()
			valkeyMgr.LoadFromConfig(cfg.Valkey)
			valkeyMgr.StartAll()

			webServer := web.NewServer(&cfg.Web, gw)
			if cfg.Web.Enabled {
				if err := webServer.Start(); err != nil {
					return fmt.Errorf("start web server: %w", err)
				}
				defer webServer.Stop()
				fmt.Printf("dashboard listening on %s\n", webServer.Address())
			}

			fmt.Printf("gateway running: %d breaker(s), %d protection relay(s)\n", len(cfg.Breakers), len(cfg.Protection))

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			return nil
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "gateway configuration file (default: "+config.DefaultPath()+")")
	root.Flags().StringVar(&auditPath, "audit-log", "", "path to append breaker/protection audit log entries (disabled if empty)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// breakerDefinition builds a breaker.Definition from its persisted form,
// falling back to breaker.DefaultDefinition for any field the config
// leaves at its zero value.
func breakerDefinition(bc config.BreakerConfig) breaker.Definition {
	def := breaker.DefaultDefinition()
	if bc.OpenTimeSec > 0 {
		def.OpenTimeSec = bc.OpenTimeSec
	}
	if bc.CloseTimeSec > 0 {
		def.CloseTimeSec = bc.CloseTimeSec
	}
	if bc.ResistanceOhm > 0 {
		def.ResistanceOhm = bc.ResistanceOhm
	}
	if bc.MaxCurrentA > 0 {
		def.MaxCurrentA = bc.MaxCurrentA
	}
	if bc.VoltageRatingV > 0 {
		def.VoltageRatingV = bc.VoltageRatingV
	}
	if bc.PowerRatingW > 0 {
		def.PowerRatingW = bc.PowerRatingW
	}
	if bc.ArcDurationSec > 0 {
		def.ArcDurationSec = bc.ArcDurationSec
	}
	if bc.ArcVoltageV > 0 {
		def.ArcVoltageV = bc.ArcVoltageV
	}
	if bc.ArcResistanceOhm > 0 {
		def.ArcResistanceOhm = bc.ArcResistanceOhm
	}
	if bc.ContactGapMm > 0 {
		def.ContactGapMm = bc.ContactGapMm
	}
	if bc.DielectricStrengthKVpm > 0 {
		def.DielectricStrengthKVpm = bc.DielectricStrengthKVpm
	}
	return def
}

// distanceSettings builds protection.DistanceSettings from the
// persisted zone configuration and direction, defaulting the
// voltage/current thresholds that the config schema doesn't carry.
func distanceSettings(pc config.ProtectionConfig) protection.DistanceSettings {
	settings := protection.DefaultDistanceSettings()
	settings.Zone1 = zone(pc.DistanceZone1, settings.Zone1)
	settings.Zone2 = zone(pc.DistanceZone2, settings.Zone2)
	settings.Zone3 = zone(pc.DistanceZone3, settings.Zone3)
	settings.DirectionForward = pc.DirectionForward
	return settings
}

// zone overrides fallback with zc's reach/angle/delay when zc carries a
// non-zero reach, i.e. when it was actually configured.
func zone(zc config.ZoneConfig, fallback protection.Zone) protection.Zone {
	if zc.ReachOhm == 0 {
		return fallback
	}
	return protection.Zone{
		ReachOhm: zc.ReachOhm,
		AngleRad: zc.AngleRad,
		Delay:    zc.Delay,
		Enabled:  zc.Enabled,
	}
}

// differentialSettings builds protection.DifferentialSettings from the
// persisted slope percentage, defaulting the operating/restraint/
// instantaneous thresholds that the config schema doesn't carry.
func differentialSettings(pc config.ProtectionConfig) protection.DifferentialSettings {
	settings := protection.DefaultDifferentialSettings()
	if pc.DifferentialSlopePercent > 0 {
		settings.SlopePercent = pc.DifferentialSlopePercent
	}
	return settings
}

// kafkaConfigs adapts the persisted Kafka bridge configuration to the
// kafka package's own Config type, enabling trip/gap event publishing
// on every enabled cluster since the gateway has no separate knob for
// it.
func kafkaConfigs(cfgs []config.KafkaConfig) []kafka.Config {
	out := make([]kafka.Config, len(cfgs))
	for i, c := range cfgs {
		autoCreate := true
		if c.AutoCreateTopics != nil {
			autoCreate = *c.AutoCreateTopics
		}
		topic := c.Topic
		if topic == "" {
			topic = "subsv-events"
		}
		out[i] = kafka.Config{
			Name:             c.Name,
			Enabled:          c.Enabled,
			Brokers:          c.Brokers,
			UseTLS:           c.UseTLS,
			TLSSkipVerify:    c.TLSSkipVerify,
			SASLMechanism:    kafka.SASLMechanism(c.SASLMechanism),
			Username:         c.Username,
			Password:         c.Password,
			RequiredAcks:     c.RequiredAcks,
			MaxRetries:       c.MaxRetries,
			RetryBackoff:     c.RetryBackoff,
			AutoCreateTopics: autoCreate,
			PublishChanges:   c.Enabled,
			Topic:            topic,
		}
	}
	return out
}
