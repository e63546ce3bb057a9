package cache

import "fmt"

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func JobKey(jobID string) string {
	return fmt.Sprintf("job:%s:record", jobID)
}
