package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubSlurm builds a Slurm whose command runner is replaced, so tests
// never shell out to scheduler tools.
func stubSlurm(fn runFunc) *Slurm {
	return &Slurm{Log: NewCommandLog(16), User: "alice", run: fn}
}

func TestParseSqueueOutput(t *testing.T) {
	output := `34989208|vllm_qwen2_5_72b|bsc070916|RUNNING|acc|1|64|2:22|2-00:00:00|None|as02r3b15
34989209|another_job|bsc070916|PENDING|acc|2|128|0:00|1-00:00:00|Priority|`
	jobs := parseSqueue(output)

	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	if jobs[0].JobID != "34989208" {
		t.Errorf("expected job ID 34989208, got %s", jobs[0].JobID)
	}
	if jobs[0].State != "RUNNING" {
		t.Errorf("expected state RUNNING, got %s", jobs[0].State)
	}
	if jobs[0].StateCode() != "R" {
		t.Errorf("expected state code R, got %s", jobs[0].StateCode())
	}
	if jobs[0].TimeLimit != "2-00:00:00" {
		t.Errorf("expected time limit 2-00:00:00, got %s", jobs[0].TimeLimit)
	}
	if jobs[0].NodeList != "as02r3b15" {
		t.Errorf("expected nodelist as02r3b15, got %s", jobs[0].NodeList)
	}
	if got := jobs[0].NodeListOrReason(); got != "as02r3b15" {
		t.Errorf("running job should show its nodelist, got %q", got)
	}

	if got := jobs[1].NodeListOrReason(); got != "(Priority)" {
		t.Errorf("pending job should show its reason, got %q", got)
	}
}

func TestParseSqueueTabSeparatedFallback(t *testing.T) {
	line := strings.Join([]string{"101", "train", "alice", "RUNNING", "gpu", "1", "8", "10:00"}, "\t")
	jobs := parseSqueue(line)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Name != "train" || jobs[0].Time != "10:00" {
		t.Errorf("unexpected job parsed: %+v", jobs[0])
	}
}

func TestParseSinfoNodes(t *testing.T) {
	output := `gpu01|mixed|main*|64|32/32/0/64|515000|120000|12.05|gpu:a100:4(S:0-1)
gpu01|mixed|gpu|64|32/32/0/64|515000|120000|12.05|gpu:a100:4(S:0-1)
cpu01|idle|main*|128|0/128/0/128|256000|250000|0.01|(null)`
	nodes := parseSinfoNodes(output)

	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes after dedupe, got %d", len(nodes))
	}

	gpu := nodes[0]
	if gpu.Name != "gpu01" {
		t.Fatalf("expected gpu01 first, got %s", gpu.Name)
	}
	if len(gpu.Partitions) != 2 || gpu.Partitions[0] != "main" || gpu.Partitions[1] != "gpu" {
		t.Errorf("expected partitions [main gpu], got %v", gpu.Partitions)
	}
	if gpu.CPUsAlloc != 32 || gpu.CPUsIdle != 32 || gpu.CPUsTotal != 64 {
		t.Errorf("unexpected CPU split: %d/%d of %d", gpu.CPUsAlloc, gpu.CPUsIdle, gpu.CPUsTotal)
	}
	if gpu.MemoryMB != 515000 || gpu.FreeMemMB != 120000 {
		t.Errorf("unexpected memory: total %d free %d", gpu.MemoryMB, gpu.FreeMemMB)
	}
	if gpu.GPUsTotal != 4 {
		t.Errorf("expected 4 GPUs from gres, got %d", gpu.GPUsTotal)
	}

	cpu := nodes[1]
	if cpu.State != "idle" {
		t.Errorf("expected idle state, got %s", cpu.State)
	}
	if cpu.GPUsTotal != 0 {
		t.Errorf("expected no GPUs for (null) gres, got %d", cpu.GPUsTotal)
	}
}

func TestParseGresGPUs(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"gpu:4", 4},
		{"gpu:a100:4(S:0-1)", 4},
		{"gpu:a100:8", 8},
		{"(null)", 0},
		{"", 0},
		{"mps:100,gpu:2", 2},
	}
	for _, tc := range tests {
		if got := parseGresGPUs(tc.input); got != tc.expected {
			t.Errorf("parseGresGPUs(%q) = %d, want %d", tc.input, got, tc.expected)
		}
	}
}

func TestParseNodeGPUAlloc(t *testing.T) {
	output := `NodeName=gpu01 Arch=x86_64 CPUAlloc=32 AllocTRES=cpu=32,mem=200G,gres/gpu=3
NodeName=gpu02 CPUAlloc=16 AllocTRES=cpu=16,gres/gpu:a100=2
NodeName=cpu01 CPUAlloc=4 AllocTRES=cpu=4,mem=10G`
	alloc := parseNodeGPUAlloc(output)

	if alloc["gpu01"] != 3 {
		t.Errorf("expected gpu01 alloc 3, got %d", alloc["gpu01"])
	}
	if alloc["gpu02"] != 2 {
		t.Errorf("expected gpu02 alloc 2 from typed gres, got %d", alloc["gpu02"])
	}
	if _, ok := alloc["cpu01"]; ok {
		t.Errorf("cpu01 has no GPU TRES and should be absent")
	}
}

func TestParseSinfoPartitions(t *testing.T) {
	output := `main*|up|infinite|24|idle|cpu[01-24]
gpu|up|2-00:00:00|4|mixed|gpu[01-04]
gpu|up|2-00:00:00|2|alloc|gpu[05-06]`
	partitions := parseSinfoPartitions(output)

	if len(partitions) != 3 {
		t.Fatalf("expected 3 partition rows, got %d", len(partitions))
	}
	if partitions[0].Name != "main*" || partitions[0].State != "idle" {
		t.Errorf("unexpected first partition: %+v", partitions[0])
	}
	if got := partitions[1].ID(); got != "gpu/mixed" {
		t.Errorf("expected partition identity gpu/mixed, got %q", got)
	}
	if partitions[1].ID() == partitions[2].ID() {
		t.Errorf("state groups of the same partition must have distinct identities")
	}
}

func TestStateCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"RUNNING", "R"},
		{"PENDING", "PD"},
		{"COMPLETED", "CD"},
		{"CANCELLED by 4840", "CA"},
		{"CANCELLED", "CA"},
		{"R", "R"},
		{"PD", "PD"},
		{"TIMEOUT", "TO"},
		{"FAILED", "F"},
		{"OUT_OF_MEMORY", "OOM"},
		{"DRAINED*", "DRAINED"},
		{"", ""},
	}

	for _, tc := range tests {
		got := StateCode(tc.input)
		if got != tc.expected {
			t.Errorf("StateCode(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestJobStateHelpers(t *testing.T) {
	running := Job{State: "RUNNING"}
	if !running.IsRunning() || running.IsPending() {
		t.Errorf("RUNNING should count as running only")
	}
	completing := Job{State: "COMPLETING"}
	if !completing.IsRunning() {
		t.Errorf("COMPLETING should count as running")
	}
	pending := Job{State: "PENDING"}
	if !pending.IsPending() || pending.IsRunning() {
		t.Errorf("PENDING should count as pending only")
	}
}

func TestBuildAttachCommand(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")

	argv := BuildAttachCommand("12345", "c2", AttachConfig{DefaultCommand: "$SHELL -l"})
	want := []string{"srun", "--pty", "--overlap", "--mpi=none", "--jobid", "12345", "-w", "c2", "/bin/zsh", "-l"}
	if len(argv) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(argv), argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], argv[i])
		}
	}
}

func TestBuildAttachCommandDefaults(t *testing.T) {
	argv := BuildAttachCommand("7", "n1", AttachConfig{ExtraArgs: []string{"--cpu-bind=none"}})
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "--cpu-bind=none") {
		t.Errorf("extra args missing: %v", argv)
	}
	if !strings.HasSuffix(joined, "bash -l") {
		t.Errorf("expected bash -l fallback, got %v", argv)
	}
}

func TestFirstNodeExpandsViaScontrol(t *testing.T) {
	s := stubSlurm(func(ctx context.Context, name string, args ...string) (string, string, error) {
		if name == "scontrol" {
			return "c7\nc8\n", "", nil
		}
		return "", "", fmt.Errorf("unexpected command %s", name)
	})

	node, err := s.FirstNode("c[7-8]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != "c7" {
		t.Errorf("expected c7, got %s", node)
	}
}

func TestFirstNodeFallback(t *testing.T) {
	s := stubSlurm(func(ctx context.Context, name string, args ...string) (string, string, error) {
		return "", "scontrol not found", fmt.Errorf("exit 127")
	})

	node, err := s.FirstNode("c1,c2")
	if err != nil {
		t.Fatalf("comma list should split without scontrol: %v", err)
	}
	if node != "c1" {
		t.Errorf("expected c1, got %s", node)
	}

	if _, err := s.FirstNode("c[1-4]"); err == nil {
		t.Errorf("bracket expression cannot be expanded without scontrol")
	}
	if _, err := s.FirstNode(""); err == nil {
		t.Errorf("empty nodelist must error")
	}
}

func TestPartitionDetailsTrimsDefaultMarker(t *testing.T) {
	var gotArgs []string
	s := stubSlurm(func(ctx context.Context, name string, args ...string) (string, string, error) {
		gotArgs = append([]string{name}, args...)
		return "PartitionName=main Nodes=cpu[01-24]\n", "", nil
	})

	text, err := s.PartitionDetails("main*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"scontrol", "show", "partition", "main"}
	if len(gotArgs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotArgs)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotArgs)
		}
	}
	if !strings.Contains(text, "cpu[01-24]") {
		t.Errorf("expected the partition node list, got %q", text)
	}
}

func TestJobDetailsFallsBackToAccounting(t *testing.T) {
	sacctLine := "123|train|alice|COMPLETED|gpu|00:10:00|1|c1|2026-01-02T10:00:00|2026-01-02T10:10:00|0:0"
	s := stubSlurm(func(ctx context.Context, name string, args ...string) (string, string, error) {
		switch name {
		case "scontrol":
			return "", "Invalid job id specified", fmt.Errorf("exit 1")
		case "sacct":
			return sacctLine + "\n", "", nil
		}
		return "", "", fmt.Errorf("unexpected command %s", name)
	})

	text, err := s.JobDetails("123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "COMPLETED") {
		t.Errorf("expected accounting text, got %q", text)
	}

	rows := parseDetailRows(text)
	foundState := false
	foundCode := false
	for _, row := range rows {
		if row[0] == "State" && row[1] == "COMPLETED" {
			foundState = true
		}
		if row[0] == "StateCode" && row[1] == "CD" {
			foundCode = true
		}
	}
	if !foundState || !foundCode {
		t.Errorf("expected State and StateCode rows in %v", rows)
	}
}

func TestParseDetailRowsScontrol(t *testing.T) {
	text := "JobId=42 JobName=train\n   Partition=gpu Comment=\n"
	rows := parseDetailRows(text)

	want := map[string]string{
		"JobId":     "42",
		"JobName":   "train",
		"Partition": "gpu",
		"Comment":   "(empty)",
	}
	for _, row := range rows {
		expected, ok := want[row[0]]
		if !ok {
			t.Errorf("unexpected row %v", row)
			continue
		}
		if row[1] != expected {
			t.Errorf("row %s: expected %q, got %q", row[0], expected, row[1])
		}
		delete(want, row[0])
	}
	if len(want) != 0 {
		t.Errorf("missing rows: %v", want)
	}
}

func TestResolveLogPathsFromScontrol(t *testing.T) {
	s := stubSlurm(func(ctx context.Context, name string, args ...string) (string, string, error) {
		if name == "scontrol" {
			return "JobId=77 JobName=train StdOut=/work/train.out StdErr=/work/train.err", "", nil
		}
		return "", "", fmt.Errorf("unexpected command %s", name)
	})

	stdout, stderr, err := s.ResolveLogPaths("77")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "/work/train.out" {
		t.Errorf("expected stdout /work/train.out, got %q", stdout)
	}
	if stderr != "/work/train.err" {
		t.Errorf("expected stderr /work/train.err, got %q", stderr)
	}
}

func TestCommandRecordsFailures(t *testing.T) {
	s := stubSlurm(func(ctx context.Context, name string, args ...string) (string, string, error) {
		return "", "slurm_load_jobs error", fmt.Errorf("exit 1")
	})

	if _, err := s.FetchJobs(); err == nil {
		t.Fatalf("expected fetch error")
	}

	recent := s.Log.Recent(1)
	if len(recent) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(recent))
	}
	stat := recent[0]
	if stat.OK {
		t.Errorf("failed command must not be marked OK")
	}
	if !strings.HasPrefix(stat.Command, "squeue") {
		t.Errorf("expected squeue invocation, got %q", stat.Command)
	}
	if stat.Stderr != "slurm_load_jobs error" {
		t.Errorf("stderr not captured: %q", stat.Stderr)
	}
}

func TestCommandLogRing(t *testing.T) {
	l := NewCommandLog(3)
	for i := 0; i < 5; i++ {
		l.Record(CommandStat{Command: fmt.Sprintf("cmd-%d", i), OK: true})
	}

	if l.Len() != 3 {
		t.Fatalf("expected ring capped at 3, got %d", l.Len())
	}
	recent := l.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[0].Command != "cmd-4" || recent[2].Command != "cmd-2" {
		t.Errorf("expected newest first [cmd-4 cmd-3 cmd-2], got %v", recent)
	}
}

func TestResolveLogPathExpandsRelative(t *testing.T) {
	got := resolveLogPath("slurm_output/%x_%j.out", "/work", "35121055", "susy_nc_cpu")
	want := "/work/slurm_output/susy_nc_cpu_35121055.out"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParseSubmitLineScriptPath(t *testing.T) {
	submitLine := "sbatch -A acc --chdir=/work /tmp/job.sbatch"
	path := parseSubmitLineScriptPath(submitLine)
	if path != "/tmp/job.sbatch" {
		t.Fatalf("expected script path /tmp/job.sbatch, got %q", path)
	}
}

func TestReadSbatchDirectives(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "job.sbatch")
	contents := "#!/bin/bash\n#SBATCH --chdir=/work\n#SBATCH --output=slurm_output/%x_%j.out\n#SBATCH --error=slurm_output/%x_%j.err\n"
	if err := os.WriteFile(scriptPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	directives, err := readSbatchDirectives(scriptPath)
	if err != nil {
		t.Fatalf("read directives: %v", err)
	}
	if directives.stdout != "slurm_output/%x_%j.out" {
		t.Fatalf("expected stdout directive, got %q", directives.stdout)
	}
	if directives.stderr != "slurm_output/%x_%j.err" {
		t.Fatalf("expected stderr directive, got %q", directives.stderr)
	}
	if directives.chdir != "/work" {
		t.Fatalf("expected chdir directive, got %q", directives.chdir)
	}
}

func TestResolveArchiveConventionPathsJobIDFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SQTOP_LOG_ARCHIVE_DIR", dir)

	jobID := "12345"
	stdoutPath := filepath.Join(dir, jobID+".out")
	stderrPath := filepath.Join(dir, jobID+".err")

	if err := os.WriteFile(stdoutPath, []byte("stdout"), 0o600); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	if err := os.WriteFile(stderrPath, []byte("stderr"), 0o600); err != nil {
		t.Fatalf("write stderr: %v", err)
	}

	gotOut, gotErr, ok := resolveArchiveConventionPaths(jobID)
	if !ok {
		t.Fatalf("expected archive convention to resolve paths")
	}
	if gotOut != stdoutPath {
		t.Fatalf("expected stdout %q, got %q", stdoutPath, gotOut)
	}
	if gotErr != stderrPath {
		t.Fatalf("expected stderr %q, got %q", stderrPath, gotErr)
	}
}

func TestResolveArchiveConventionPathsMergedOutput(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SQTOP_LOG_ARCHIVE_DIR", dir)

	jobID := "67890"
	mergedPath := filepath.Join(dir, "slurm-"+jobID+".out")
	if err := os.WriteFile(mergedPath, []byte("merged"), 0o600); err != nil {
		t.Fatalf("write merged log: %v", err)
	}

	gotOut, gotErr, ok := resolveArchiveConventionPaths(jobID)
	if !ok {
		t.Fatalf("expected archive convention to resolve merged output")
	}
	if gotOut != mergedPath {
		t.Fatalf("expected stdout %q, got %q", mergedPath, gotOut)
	}
	if gotErr != mergedPath {
		t.Fatalf("expected stderr to fall back to stdout %q, got %q", mergedPath, gotErr)
	}
}
