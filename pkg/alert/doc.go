// Package alert reports tenant isolation violations detected by the scoped
// data-access layer: rows of a foreign tenant reaching the application, writes
// rejected by the database row policy, and attempts to stamp or change a row's
// tenant.
//
// A violation is never retried and never shown to the end user. LogAlerter
// records the full detail at error level and PrometheusAlerter counts
// violations as tenantguard_policy_violations_total{table,op,kind}. Use Multi
// to combine them:
//
//	prom, err := alert.NewPrometheusAlerter(prometheus.DefaultRegisterer)
//	if err != nil {
//		return err
//	}
//	alerter := alert.Multi(alert.NewLogAlerter(log), prom)
package alert
