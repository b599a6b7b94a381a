/*
Package log wraps zerolog for the sentinel daemons.

Init configures the package-level Logger from a Config: Level (DebugLevel,
InfoLevel, WarnLevel or ErrorLevel; any other value means info),
JSONOutput (JSON lines instead of zerolog's console writer) and Output
(stdout when nil). Every entry carries a timestamp.

WithComponent, WithHostID, WithPID and WithEntityID return child loggers
carrying a component, host_id, pid or entity_id field. Info, Debug, Warn,
Error, Errorf and Fatal log one message on the global Logger; Fatal logs
at zerolog's fatal level, which exits the process.

Throttled limits a noisy message per key: Allow(key) reports true at most
once per interval for each key.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	l := log.WithComponent("ingest")

	throttle := log.NewThrottled(5 * time.Second)
	if throttle.Allow("gpu-probe") {
		l.Warn().Msg("probe emitted unparseable line")
	}

The package does no log rotation.
*/
package log
