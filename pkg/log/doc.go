/*
Package log provides structured logging for the auto-healer using zerolog.

A single global Logger is configured once at startup with Init. Stages derive
child loggers carrying the fields an operator filters on when reading an
invocation back out of CloudWatch Logs:

	log.WithComponent("correlator")
	log.WithInvocationID("4f1c...")
	log.WithTargetGroup("arn:aws:elasticloadbalancing:...:targetgroup/web/...")
	log.WithInstanceID("arn:aws:ecs:...:task/prod/...")

# Output

JSON output is the default under Lambda:

	{"level":"info","component":"remediator","instance_id":"...","time":"...","message":"stopped instance"}

Console output is the default for the CLI:

	2026-10-16T10:30:00Z INF stopped instance component=remediator instance_id=...
*/
package log
