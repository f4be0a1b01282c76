// Package alerts implements the rule evaluation engine and webhook delivery
// for report alerting. Rules are evaluated against every stored report;
// webhooks are delivered to Teams, Slack or generic HTTP targets.
package alerts
