package main

import (
	"os"
	"os/exec"
	"strconv"
)

// jobIDFromEnv recovers the numeric job id the engine assigned this job, so
// every mngt-channel message this process sends can be correlated back to
// it (spec §6 "each message carries {seq_id, job_id}"). lmaked sets
// LMAKE_JOB_ID alongside LMAKE_AUTODEP_ENV when it launches a job.
func jobIDFromEnv() uint64 {
	id, err := strconv.ParseUint(os.Getenv("LMAKE_JOB_ID"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// execPassthrough runs argv with no tracing at all; run uses it when
// LMAKE_AUTODEP_ENV carries the 'd' (disabled) option.
func execPassthrough(argv []string) int {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		return 1
	}
	return 0
}
