package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Job is one row of the squeue listing.
type Job struct {
	JobID     string
	Name      string
	User      string
	State     string // full state name, e.g. RUNNING
	Partition string
	Nodes     string
	CPUs      string
	Time      string
	TimeLimit string
	Reason    string
	NodeList  string
}

// StateCode returns the short state code (R, PD, etc.)
func (j Job) StateCode() string {
	return StateCode(j.State)
}

// IsRunning checks if the job is in a running state
func (j Job) IsRunning() bool {
	s := j.StateCode()
	return s == "R" || s == "CG"
}

// IsPending checks if the job is in a pending state
func (j Job) IsPending() bool {
	s := j.StateCode()
	return s == "PD" || s == "CF" || s == "PR" || s == "RQ" || s == "RS" || s == "S" || s == "ST" || s == "RH" || s == "RF"
}

// NodeListOrReason shows where the job runs, or why it does not yet.
func (j Job) NodeListOrReason() string {
	if j.NodeList != "" {
		return j.NodeList
	}
	if j.Reason != "" && j.Reason != "None" {
		return "(" + j.Reason + ")"
	}
	return ""
}

// Node is one compute node from the sinfo listing, collapsed across the
// per-partition duplicate lines sinfo emits.
type Node struct {
	Name       string
	State      string
	Partitions []string
	CPUsAlloc  int
	CPUsIdle   int
	CPUsOther  int
	CPUsTotal  int
	MemoryMB   int
	FreeMemMB  int
	Load       string
	GPUsTotal  int
	GPUsAlloc  int
}

// Partition is one partition+state group from sinfo. The same partition
// appears once per node state, so identity needs both fields.
type Partition struct {
	Name      string
	Avail     string
	TimeLimit string
	Nodes     string
	State     string
	NodeList  string
}

// ID returns the identity of a partition row.
func (p Partition) ID() string {
	return p.Name + "/" + p.State
}

var statusAliases = map[string]string{
	"RUNNING":       "R",
	"COMPLETING":    "CG",
	"CONFIGURING":   "CF",
	"PENDING":       "PD",
	"PREEMPTED":     "PR",
	"REQUEUED":      "RQ",
	"REQUEUE_HOLD":  "RH",
	"REQUEUE_FED":   "RF",
	"RESIZING":      "RS",
	"SUSPENDED":     "S",
	"STOPPED":       "ST",
	"PP":            "PD", // Handle 'pp' as pending
	"COMPLETED":     "CD",
	"CANCELLED":     "CA",
	"FAILED":        "F",
	"TIMEOUT":       "TO",
	"NODE_FAIL":     "NF",
	"OUT_OF_MEMORY": "OOM",
}

// StateCode converts full status to short code
func StateCode(status string) string {
	text := strings.ToUpper(strings.TrimSpace(status))
	if text == "" {
		return ""
	}
	text = strings.TrimRight(text, "*+")

	if alias, ok := statusAliases[text]; ok {
		return alias
	}

	// Handle cases like "CANCELLED by 1234" by taking the first word.
	parts := strings.Fields(text)
	if len(parts) > 1 {
		if alias, ok := statusAliases[parts[0]]; ok {
			return alias
		}
	}

	return text
}

func CurrentUser() string {
	u, err := user.Current()
	if err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// CommandStat is one recorded scheduler CLI invocation.
type CommandStat struct {
	Command string
	OK      bool
	Latency time.Duration
	Stderr  string
	At      time.Time
}

// CommandLog is a bounded ring of recent command invocations. One
// instance is constructed at startup and shared by everything that shells
// out; the mutex covers records arriving from fetch goroutines.
type CommandLog struct {
	mu    sync.Mutex
	slots []CommandStat
	write int
	count int
}

const commandLogCapacity = 300

func NewCommandLog(capacity int) *CommandLog {
	if capacity <= 0 {
		capacity = commandLogCapacity
	}
	return &CommandLog{slots: make([]CommandStat, capacity)}
}

func (l *CommandLog) Record(stat CommandStat) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slots[l.write] = stat
	l.write = (l.write + 1) % len(l.slots)
	if l.count < len(l.slots) {
		l.count++
	}
}

// Recent returns up to n recorded stats, newest first.
func (l *CommandLog) Recent(n int) []CommandStat {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > l.count {
		n = l.count
	}
	out := make([]CommandStat, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.write - i + len(l.slots)) % len(l.slots)
		out = append(out, l.slots[idx])
	}
	return out
}

func (l *CommandLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// runFunc executes one external command. Tests swap it for a stub so no
// scheduler tools are needed on the machine running them.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

func execRun(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Slurm is the data-source boundary: thin wrappers over the scheduler CLI
// plus parsers for their output. It is constructed once and passed in;
// fetch failures come back as errors here and are absorbed into empty
// results by the callers, with the detail kept in the command log.
type Slurm struct {
	Log  *CommandLog
	User string
	run  runFunc
}

func NewSlurm(log *CommandLog) *Slurm {
	return &Slurm{Log: log, User: CurrentUser(), run: execRun}
}

// command runs one CLI invocation under a timeout and records its outcome.
func (s *Slurm) command(timeout time.Duration, name string, args ...string) (string, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	stdout, stderr, err := s.run(ctx, name, args...)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("command timed out after %s", timeout)
	} else if err != nil {
		err = fmt.Errorf("command failed: %v, stderr: %s", err, strings.TrimSpace(stderr))
	}

	if s.Log != nil {
		s.Log.Record(CommandStat{
			Command: strings.Join(append([]string{name}, args...), " "),
			OK:      err == nil,
			Latency: time.Since(started),
			Stderr:  strings.TrimSpace(stderr),
			At:      time.Now(),
		})
	}
	if err != nil {
		return "", err
	}
	return stdout, nil
}

const (
	squeueFormat         = "%i|%j|%u|%T|%P|%D|%C|%M|%l|%R|%N"
	sinfoNodeFormat      = "%n|%T|%P|%c|%C|%m|%e|%O|%G"
	sinfoPartitionFormat = "%P|%a|%l|%D|%T|%N"
)

// FetchJobs lists the queue for all users.
func (s *Slurm) FetchJobs() ([]Job, error) {
	out, err := s.command(10*time.Second, "squeue", "-h", "-o", squeueFormat)
	if err != nil {
		return nil, err
	}
	return parseSqueue(out), nil
}

func parseSqueue(output string) []Job {
	var jobs []Job
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 8 {
			parts = strings.Split(line, "\t")
			if len(parts) < 8 {
				continue
			}
		}
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}

		job := Job{
			JobID:     parts[0],
			Name:      parts[1],
			User:      parts[2],
			State:     parts[3],
			Partition: parts[4],
			Nodes:     parts[5],
			CPUs:      parts[6],
			Time:      parts[7],
		}
		if len(parts) > 8 {
			job.TimeLimit = parts[8]
		}
		if len(parts) > 9 {
			job.Reason = parts[9]
		}
		if len(parts) > 10 {
			job.NodeList = parts[10]
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// FetchNodes lists compute nodes. GPU allocation comes from a best-effort
// second query against scontrol; when that fails the nodes still load,
// just without allocated-GPU counts.
func (s *Slurm) FetchNodes() ([]Node, error) {
	out, err := s.command(10*time.Second, "sinfo", "-h", "-N", "-o", sinfoNodeFormat)
	if err != nil {
		return nil, err
	}
	nodes := parseSinfoNodes(out)

	if detail, err := s.command(10*time.Second, "scontrol", "show", "nodes", "-o"); err == nil {
		alloc := parseNodeGPUAlloc(detail)
		for i := range nodes {
			nodes[i].GPUsAlloc = alloc[nodes[i].Name]
		}
	}
	return nodes, nil
}

func parseSinfoNodes(output string) []Node {
	var nodes []Node
	index := make(map[string]int)
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 9 {
			continue
		}
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}

		name := parts[0]
		partition := strings.TrimSuffix(parts[2], "*")
		if at, seen := index[name]; seen {
			// sinfo -N repeats a node once per partition; keep the first
			// line's state and just collect the extra partition.
			if partition != "" && !containsString(nodes[at].Partitions, partition) {
				nodes[at].Partitions = append(nodes[at].Partitions, partition)
			}
			continue
		}

		node := Node{
			Name:  name,
			State: parts[1],
			Load:  parts[7],
		}
		if partition != "" {
			node.Partitions = []string{partition}
		}
		node.CPUsAlloc, node.CPUsIdle, node.CPUsOther, node.CPUsTotal = parseCPUsAIOT(parts[4])
		if node.CPUsTotal == 0 {
			node.CPUsTotal = atoiOrZero(parts[3])
		}
		node.MemoryMB = atoiOrZero(parts[5])
		node.FreeMemMB = atoiOrZero(parts[6])
		node.GPUsTotal = parseGresGPUs(parts[8])

		index[name] = len(nodes)
		nodes = append(nodes, node)
	}
	return nodes
}

// parseCPUsAIOT splits sinfo's %C "alloc/idle/other/total" field.
func parseCPUsAIOT(field string) (alloc, idle, other, total int) {
	parts := strings.Split(field, "/")
	if len(parts) != 4 {
		return 0, 0, 0, 0
	}
	return atoiOrZero(parts[0]), atoiOrZero(parts[1]), atoiOrZero(parts[2]), atoiOrZero(parts[3])
}

// parseGresGPUs extracts the GPU count from a gres string such as
// "gpu:4", "gpu:a100:4(S:0-1)" or "(null)".
func parseGresGPUs(gres string) int {
	for _, part := range strings.Split(gres, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "gpu") {
			continue
		}
		if idx := strings.IndexByte(part, '('); idx >= 0 {
			part = part[:idx]
		}
		fields := strings.Split(part, ":")
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			return n
		}
	}
	return 0
}

var (
	nodeNameRe   = regexp.MustCompile(`NodeName=(\S+)`)
	allocGPURe   = regexp.MustCompile(`AllocTRES=\S*?gres/gpu[^=,]*=(\d+)`)
	stdoutPathRe = regexp.MustCompile(`StdOut=(\S+)`)
	stderrPathRe = regexp.MustCompile(`StdErr=(\S+)`)
)

// parseNodeGPUAlloc maps node name to allocated GPUs from
// `scontrol show nodes -o` output (one line per node).
func parseNodeGPUAlloc(output string) map[string]int {
	alloc := make(map[string]int)
	for _, line := range strings.Split(output, "\n") {
		name := ""
		if m := nodeNameRe.FindStringSubmatch(line); len(m) > 1 {
			name = m[1]
		}
		if name == "" {
			continue
		}
		if m := allocGPURe.FindStringSubmatch(line); len(m) > 1 {
			alloc[name] = atoiOrZero(m[1])
		}
	}
	return alloc
}

// FetchPartitions lists partition/state groups.
func (s *Slurm) FetchPartitions() ([]Partition, error) {
	out, err := s.command(10*time.Second, "sinfo", "-h", "-o", sinfoPartitionFormat)
	if err != nil {
		return nil, err
	}
	return parseSinfoPartitions(out), nil
}

func parseSinfoPartitions(output string) []Partition {
	var partitions []Partition
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 6 {
			continue
		}
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		partitions = append(partitions, Partition{
			Name:      parts[0],
			Avail:     parts[1],
			TimeLimit: parts[2],
			Nodes:     parts[3],
			State:     parts[4],
			NodeList:  parts[5],
		})
	}
	return partitions
}

// JobDetails fetches scontrol's view of a job, falling back to sacct for
// jobs that already left the controller's memory.
func (s *Slurm) JobDetails(jobID string) (string, error) {
	out, err := s.command(15*time.Second, "scontrol", "show", "job", jobID)
	if err == nil && strings.TrimSpace(out) != "" {
		return out, nil
	}
	return s.command(15*time.Second, "sacct", "-j", jobID,
		"--format", "JobID,JobName,User,State,Partition,Elapsed,AllocNodes,NodeList,Start,End,ExitCode",
		"-P", "-n")
}

// NodeDetails fetches scontrol's view of a node.
func (s *Slurm) NodeDetails(name string) (string, error) {
	return s.command(15*time.Second, "scontrol", "show", "node", name)
}

// PartitionDetails fetches scontrol's view of a partition. sinfo marks the
// default partition with a "*" suffix that scontrol does not accept.
func (s *Slurm) PartitionDetails(name string) (string, error) {
	return s.command(15*time.Second, "scontrol", "show", "partition", strings.TrimSuffix(name, "*"))
}

// Job actions supported by RunJobAction.
const (
	actionCancel  = "cancel"
	actionHold    = "hold"
	actionRelease = "release"
	actionRequeue = "requeue"
)

// RunJobAction dispatches a single-job action to the matching CLI tool.
func (s *Slurm) RunJobAction(action, jobID string) error {
	switch action {
	case actionCancel:
		_, err := s.command(5*time.Second, "scancel", jobID)
		return err
	case actionHold, actionRelease, actionRequeue:
		_, err := s.command(10*time.Second, "scontrol", action, jobID)
		return err
	default:
		return fmt.Errorf("unsupported job action %q", action)
	}
}

// CancelJob cancels a job
func (s *Slurm) CancelJob(jobID string) error {
	return s.RunJobAction(actionCancel, jobID)
}

// TailFile returns the last n lines of path via tail(1).
func (s *Slurm) TailFile(path string, lines int) (string, error) {
	return s.command(5*time.Second, "tail", "-n", strconv.Itoa(lines), path)
}

// FirstNode expands a nodelist expression and returns its first host,
// falling back to a comma split when scontrol is unavailable.
func (s *Slurm) FirstNode(nodeList string) (string, error) {
	nodeList = strings.TrimSpace(nodeList)
	if nodeList == "" {
		return "", fmt.Errorf("job has no allocated nodes")
	}
	if out, err := s.command(5*time.Second, "scontrol", "show", "hostnames", nodeList); err == nil {
		for _, line := range strings.Split(out, "\n") {
			if host := strings.TrimSpace(line); host != "" {
				return host, nil
			}
		}
	}
	host := strings.TrimSpace(strings.Split(nodeList, ",")[0])
	if host == "" || strings.ContainsAny(host, "[]") {
		return "", fmt.Errorf("cannot expand nodelist %q", nodeList)
	}
	return host, nil
}

// BuildAttachCommand assembles the srun invocation that opens a shell
// inside a running job's allocation. The configured command may reference
// environment variables ("$SHELL -l").
func BuildAttachCommand(jobID, node string, cfg AttachConfig) []string {
	args := []string{"srun", "--pty", "--overlap", "--mpi=none", "--jobid", jobID, "-w", node}
	args = append(args, cfg.ExtraArgs...)
	command := strings.TrimSpace(os.ExpandEnv(cfg.DefaultCommand))
	if command == "" {
		command = "bash -l"
	}
	return append(args, strings.Fields(command)...)
}

// ResolveLogPaths finds StdOut and StdErr paths for a job.
// For live/running jobs, it uses scontrol which has the exact paths.
// For finished jobs (or if scontrol fails), it falls back to sacct heuristics.
func (s *Slurm) ResolveLogPaths(jobID string) (string, string, error) {
	// Try scontrol first (works for jobs still in slurmctld memory)
	out, err := s.command(10*time.Second, "scontrol", "show", "job", jobID)
	if err == nil {
		stdout := ""
		if matches := stdoutPathRe.FindStringSubmatch(out); len(matches) > 1 {
			stdout = matches[1]
		}
		stderr := ""
		if matches := stderrPathRe.FindStringSubmatch(out); len(matches) > 1 {
			stderr = matches[1]
		}
		if stdout != "" || stderr != "" {
			return stdout, stderr, nil
		}
	}

	// Fallback: Use sacct for finished/historical jobs
	// NOTE: sacct doesn't provide StdOut/StdErr directly, so we use heuristics:
	// 1. Parse -o/--output and -e/--error from SubmitLine if present
	// 2. If SubmitLine references a script, parse #SBATCH directives
	// 3. Default to WorkDir/slurm-JOBID.out
	//
	// Using -X to get only the main job entry (skip .batch, .extern steps which have empty WorkDir)
	outSacct, errSacct := s.command(5*time.Second, "sacct", "-j", jobID, "-o", "WorkDir,SubmitLine,JobName", "-X", "-n", "-P")
	if errSacct == nil {
		workDir := ""
		submitLine := ""
		jobName := ""

		// Find the first line with a non-empty WorkDir
		// (step entries like .batch/.extern have empty WorkDir)
		for _, line := range strings.Split(strings.TrimSpace(outSacct), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			parts := strings.SplitN(line, "|", 3)
			if len(parts) < 3 {
				continue
			}

			wd := strings.TrimSpace(parts[0])
			if wd == "" {
				continue
			}

			workDir = wd
			submitLine = strings.TrimSpace(parts[1])
			jobName = strings.TrimSpace(parts[2])
			break
		}

		if workDir != "" {
			submitDirectives := parseSubmitLineDirectives(submitLine)
			baseDir := workDir
			if submitDirectives.chdir != "" {
				baseDir = submitDirectives.chdir
			}

			stdoutPath := resolveLogPath(submitDirectives.stdout, baseDir, jobID, jobName)
			stderrPath := resolveLogPath(submitDirectives.stderr, baseDir, jobID, jobName)

			if stdoutPath == "" || stderrPath == "" {
				if scriptPath := parseSubmitLineScriptPath(submitLine); scriptPath != "" {
					if scriptDirectives, err := readSbatchDirectives(scriptPath); err == nil {
						scriptBase := baseDir
						if scriptDirectives.chdir != "" {
							scriptBase = scriptDirectives.chdir
						}
						if stdoutPath == "" {
							stdoutPath = resolveLogPath(scriptDirectives.stdout, scriptBase, jobID, jobName)
						}
						if stderrPath == "" {
							stderrPath = resolveLogPath(scriptDirectives.stderr, scriptBase, jobID, jobName)
						}
					}
				}
			}

			if stdoutPath == "" {
				stdoutPath = resolveLogPath(fmt.Sprintf("slurm-%s.out", jobID), workDir, jobID, jobName)
			}
			if stderrPath == "" {
				stderrPath = stdoutPath
			}

			if stdoutPath != "" || stderrPath != "" {
				return stdoutPath, stderrPath, nil
			}
		}
	}

	// Final fallback for old jobs: a deterministic archive convention that does
	// not depend on slurmctld/sacct retention.
	if stdoutPath, stderrPath, ok := resolveArchiveConventionPaths(jobID); ok {
		return stdoutPath, stderrPath, nil
	}

	return "", "", fmt.Errorf("could not resolve logs (job may be purged from sacct or WorkDir unavailable); also checked archive convention in %s", logArchiveDir())
}

var (
	outputFlagRe = regexp.MustCompile(`(?i)(?:^|\s)(-o|--output)\s*=?\s*(\S+)`)
	errorFlagRe  = regexp.MustCompile(`(?i)(?:^|\s)(-e|--error)\s*=?\s*(\S+)`)
	chdirFlagRe  = regexp.MustCompile(`(?i)(?:^|\s)(-D|--chdir)\s*=?\s*(\S+)`)
)

type sbatchDirectives struct {
	stdout string
	stderr string
	chdir  string
}

func parseSubmitLineDirectives(submitLine string) sbatchDirectives {
	return sbatchDirectives{
		stdout: parseFlagValue(submitLine, outputFlagRe),
		stderr: parseFlagValue(submitLine, errorFlagRe),
		chdir:  parseFlagValue(submitLine, chdirFlagRe),
	}
}

func parseSubmitLineScriptPath(submitLine string) string {
	fields := strings.Fields(submitLine)
	if len(fields) == 0 {
		return ""
	}

	start := 0
	for i, field := range fields {
		if strings.Contains(field, "sbatch") {
			start = i + 1
			break
		}
	}

	for i := start; i < len(fields); i++ {
		field := fields[i]
		if strings.HasPrefix(field, "-") {
			if !strings.Contains(field, "=") {
				if i+1 < len(fields) && submitLineFlagTakesValue(field) {
					i++
				}
			}
			continue
		}
		return strings.Trim(field, "\"'")
	}

	return ""
}

func submitLineFlagTakesValue(flag string) bool {
	switch flag {
	case "-o", "--output", "-e", "--error", "-D", "--chdir", "-J", "--job-name", "-A", "--account", "--wrap":
		return true
	default:
		return false
	}
}

func readSbatchDirectives(path string) (sbatchDirectives, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sbatchDirectives{}, err
	}
	return parseSbatchDirectives(string(data)), nil
}

func parseSbatchDirectives(contents string) sbatchDirectives {
	directives := sbatchDirectives{}
	for _, line := range strings.Split(contents, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#SBATCH") {
			continue
		}
		if directives.stdout == "" {
			directives.stdout = parseFlagValue(trimmed, outputFlagRe)
		}
		if directives.stderr == "" {
			directives.stderr = parseFlagValue(trimmed, errorFlagRe)
		}
		if directives.chdir == "" {
			directives.chdir = parseFlagValue(trimmed, chdirFlagRe)
		}
	}
	return directives
}

func parseFlagValue(text string, re *regexp.Regexp) string {
	matches := re.FindStringSubmatch(text)
	if len(matches) < 3 {
		return ""
	}
	return cleanSbatchValue(matches[2])
}

func cleanSbatchValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "\"'")
	if idx := strings.IndexAny(value, "\n\r"); idx != -1 {
		value = value[:idx]
	}
	if idx := strings.Index(value, "|"); idx != -1 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

func resolveLogPath(value, baseDir, jobID, jobName string) string {
	value = cleanSbatchValue(value)
	if value == "" {
		return ""
	}

	value = strings.ReplaceAll(value, "%j", jobID)
	if jobName != "" {
		value = strings.ReplaceAll(value, "%x", jobName)
	}

	if value != "" && !strings.HasPrefix(value, "/") && baseDir != "" {
		value = fmt.Sprintf("%s/%s", baseDir, value)
	}

	return value
}

func logArchiveDir() string {
	if configured := strings.TrimSpace(os.Getenv("SQTOP_LOG_ARCHIVE_DIR")); configured != "" {
		return expandHomePath(configured)
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".sqtop", "logs")
}

func expandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func resolveArchiveConventionPaths(jobID string) (string, string, bool) {
	root := logArchiveDir()
	if root == "" || jobID == "" {
		return "", "", false
	}

	stdoutCandidates := []string{
		filepath.Join(root, jobID+".out"),
		filepath.Join(root, "slurm-"+jobID+".out"),
		filepath.Join(root, jobID, "stdout.log"),
		filepath.Join(root, jobID, "out.log"),
	}
	stderrCandidates := []string{
		filepath.Join(root, jobID+".err"),
		filepath.Join(root, "slurm-"+jobID+".err"),
		filepath.Join(root, jobID, "stderr.log"),
		filepath.Join(root, jobID, "err.log"),
	}

	stdoutPath := firstExistingFile(stdoutCandidates)
	stderrPath := firstExistingFile(stderrCandidates)

	// Support merged stdout/stderr.
	if stdoutPath == "" && stderrPath != "" {
		stdoutPath = stderrPath
	}
	if stderrPath == "" && stdoutPath != "" {
		stderrPath = stdoutPath
	}

	if stdoutPath == "" && stderrPath == "" {
		return "", "", false
	}
	return stdoutPath, stderrPath, true
}

func firstExistingFile(candidates []string) string {
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
