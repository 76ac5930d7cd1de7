/**
 * @description
 * Prometheus counters for the attendance endpoints. Counters are registered
 * with the default registry at package init and exposed on /metrics by the
 * router.
 */

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_check_ins_total",
		Help: "Number of accepted check-ins, labelled by attendance type.",
	}, []string{"type"})

	checkOuts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_check_outs_total",
		Help: "Number of accepted check-outs, labelled by attendance type.",
	}, []string{"type"})

	checkInDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_check_in_denials_total",
		Help: "Number of check-ins denied for lack of available attendances, labelled by attendance type.",
	}, []string{"type"})
)
