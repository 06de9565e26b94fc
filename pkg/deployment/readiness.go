package deployment

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/kubectl/pkg/util/podutils"
)

// podCounts summarizes the pods selected by a workload.
type podCounts struct {
	// total counts every pod that still exists, terminating ones included.
	total     int
	scheduled int
	running   int
	ready     int
}

func countPods(pods []corev1.Pod) podCounts {
	c := podCounts{}
	for i := range pods {
		p := &pods[i]
		if p.Status.Phase == corev1.PodSucceeded || p.Status.Phase == corev1.PodFailed {
			continue
		}
		c.total++
		if p.DeletionTimestamp != nil {
			continue
		}
		if isScheduled(p) {
			c.scheduled++
		}
		if p.Status.Phase == corev1.PodRunning {
			c.running++
			if podutils.IsPodReady(p) {
				c.ready++
			}
		}
	}
	return c
}

func isScheduled(p *corev1.Pod) bool {
	if p.Spec.NodeName != "" {
		return true
	}
	for _, c := range p.Status.Conditions {
		if c.Type == corev1.PodScheduled && c.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
