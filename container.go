// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"git.arvados.org/arvados.git/lib/cmd"
	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/arvados.git/sdk/go/arvadosclient"
	"git.arvados.org/arvados.git/sdk/go/keepclient"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

var refreshTicker = time.NewTicker(5 * time.Second)

// arvadosContainerRunner runs one mnv subcommand in an Arvados
// container. Output files go to /mnt/output, which becomes the
// container request's output collection.
type arvadosContainerRunner struct {
	Client      *arvados.Client
	Name        string
	OutputName  string
	ProjectUUID string
	Image       string // default "mnv-runtime"
	APIAccess   bool
	VCPUs       int
	RAM         int64
	Prog        string // if empty, upload and run /proc/self/exe
	Args        []string
	Mounts      map[string]map[string]interface{}
	Priority    int
	KeepCache   int // cache buffers per VCPU (0 for default)
	Preemptible bool
}

// newContainerRunner returns a runner sized and configured from cfg.
func newContainerRunner(cfg Config, name, projectUUID string, priority int) arvadosContainerRunner {
	return arvadosContainerRunner{
		Client:      arvados.NewClientFromEnv(),
		Name:        name,
		ProjectUUID: projectUUID,
		Image:       cfg.Container.Image,
		VCPUs:       cfg.Container.VCPUs,
		RAM:         cfg.Container.RAM,
		KeepCache:   cfg.Container.KeepCache,
		Priority:    priority,
	}
}

func (runner *arvadosContainerRunner) Run() (string, error) {
	return runner.RunContext(context.Background())
}

// containerRequest returns the attributes of a committed container
// request that runs command with the given mounts.
func (runner *arvadosContainerRunner) containerRequest(command []string, mounts map[string]map[string]interface{}) map[string]interface{} {
	image := runner.Image
	if image == "" {
		image = "mnv-runtime"
	}
	priority := runner.Priority
	if priority < 1 {
		priority = 500
	}
	keepCache := runner.KeepCache
	if keepCache < 1 {
		keepCache = 2
	}
	vcpus := runner.VCPUs
	if vcpus < 1 {
		vcpus = 1
	}
	rc := arvados.RuntimeConstraints{
		API:          runner.APIAccess,
		VCPUs:        vcpus,
		RAM:          runner.RAM,
		KeepCacheRAM: (1 << 26) * int64(keepCache) * int64(vcpus),
	}
	var outname interface{}
	if runner.OutputName != "" {
		outname = runner.OutputName
	}
	return map[string]interface{}{
		"owner_uuid":          runner.ProjectUUID,
		"name":                runner.Name,
		"container_image":     image,
		"command":             command,
		"mounts":              mounts,
		"use_existing":        true,
		"output_path":         "/mnt/output",
		"output_name":         outname,
		"runtime_constraints": rc,
		"priority":            priority,
		"state":               arvados.ContainerRequestStateCommitted,
		"scheduling_parameters": arvados.SchedulingParameters{
			Preemptible: runner.Preemptible,
			Partitions:  []string{},
		},
		"environment": map[string]string{
			"GOMAXPROCS": strconv.Itoa(vcpus),
		},
		"container_count_max": 1,
	}
}

// RunContext submits the container request, relays the container's
// stderr until it finishes, and returns the output collection UUID.
// Canceling ctx cancels the container request.
func (runner *arvadosContainerRunner) RunContext(ctx context.Context) (string, error) {
	if runner.ProjectUUID == "" {
		return "", errors.New("cannot run arvados container: ProjectUUID not provided")
	}
	mounts := map[string]map[string]interface{}{
		"/mnt/output": {
			"kind":     "collection",
			"writable": true,
		},
	}
	for path, mnt := range runner.Mounts {
		mounts[path] = mnt
	}
	prog := runner.Prog
	if prog == "" {
		prog = "/mnt/cmd/mnv"
		cmdUUID, err := runner.makeCommandCollection()
		if err != nil {
			return "", err
		}
		mounts["/mnt/cmd"] = map[string]interface{}{
			"kind": "collection",
			"uuid": cmdUUID,
		}
	}
	command := append([]string{prog}, runner.Args...)

	var cr arvados.ContainerRequest
	err := runner.Client.RequestAndDecode(&cr, "POST", "arvados/v1/container_requests", nil, map[string]interface{}{
		"container_request": runner.containerRequest(command, mounts),
	})
	if err != nil {
		return "", err
	}
	log.Printf("%s: container request UUID: %s", runner.Name, cr.UUID)
	log.Printf("%s: container UUID: %s", runner.Name, cr.ContainerUUID)

	err = runner.wait(ctx, &cr)
	if err != nil {
		return "", err
	}
	var c arvados.Container
	err = runner.Client.RequestAndDecode(&c, "GET", "arvados/v1/containers/"+cr.ContainerUUID, nil, nil)
	if err != nil {
		return "", err
	} else if c.State != arvados.ContainerStateComplete {
		return "", fmt.Errorf("%s: container did not complete: %s", runner.Name, c.State)
	} else if c.ExitCode != 0 {
		return "", fmt.Errorf("%s: container exited %d", runner.Name, c.ExitCode)
	}
	return cr.OutputUUID, nil
}

// wait polls cr until it is final, relaying container logs.
func (runner *arvadosContainerRunner) wait(ctx context.Context, cr *arvados.ContainerRequest) error {
	events := make(chan eventMessage)
	stream := eventStream{Client: runner.Client}
	defer stream.Close()
	subscribed := ""
	defer func() {
		if subscribed != "" {
			stream.Unsubscribe(events, subscribed)
		}
	}()
	logs := &containerLogs{client: runner.Client, stderr: os.Stderr}
	defer logs.endLine()

	lastState := cr.State
	refresh := func() {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		err := runner.Client.RequestAndDecodeContext(ctx, cr, "GET", "arvados/v1/container_requests/"+cr.UUID, nil, nil)
		if err != nil {
			logs.endLine()
			log.Printf("error getting container request: %s", err)
			return
		}
		if lastState != cr.State {
			logs.endLine()
			log.Printf("%s: container request state: %s", runner.Name, cr.State)
			lastState = cr.State
		}
		if subscribed != cr.ContainerUUID {
			logs.endLine()
			if subscribed != "" {
				stream.Unsubscribe(events, subscribed)
			}
			stream.Subscribe(events, cr.ContainerUUID)
			subscribed = cr.ContainerUUID
			logs.reset(cr.UUID, cr.ContainerUUID)
		}
	}
	logs.reset(cr.UUID, cr.ContainerUUID)

	const logWaitMin, logWaitMax = time.Second, 10 * time.Second
	logWait := logWaitMin
	logWaitDone := time.After(logWait)
	for cr.State != arvados.ContainerRequestStateFinal {
		select {
		case <-ctx.Done():
			err := runner.Client.RequestAndDecode(cr, "PATCH", "arvados/v1/container_requests/"+cr.UUID, nil, map[string]interface{}{
				"container_request": map[string]interface{}{
					"priority": 0,
				},
			})
			if err != nil {
				log.Errorf("error while trying to cancel container request %s: %s", cr.UUID, err)
			}
			return ctx.Err()
		case <-refreshTicker.C:
			refresh()
		case msg := <-events:
			if msg.EventType == "update" {
				refresh()
			}
		case <-logWaitDone:
			if logs.poll() {
				logWait = logWaitMin
			} else {
				logWait *= 2
				if logWait > logWaitMax {
					logWait = logWaitMax
				}
			}
			logWaitDone = time.After(logWait)
		}
	}
	return nil
}

// containerLogs follows a container's stderr and crunchstat logs.
type containerLogs struct {
	client        *arvados.Client
	crUUID        string
	containerUUID string
	tell          map[string]int64
	stderr        io.Writer
	needNewline   bool
}

func (cl *containerLogs) reset(crUUID, containerUUID string) {
	cl.crUUID, cl.containerUUID = crUUID, containerUUID
	cl.tell = map[string]int64{}
}

// endLine terminates a pending progress line on stderr.
func (cl *containerLogs) endLine() {
	if cl.needNewline {
		fmt.Fprint(cl.stderr, "\n")
		cl.needNewline = false
	}
}

// poll fetches new log data and reports whether there was any.
func (cl *containerLogs) poll() bool {
	if cl.containerUUID == "" {
		return false
	}
	got := false
	for _, fnm := range []string{"stderr.txt", "crunchstat.txt"} {
		data, err := cl.fetch(fnm)
		if err != nil {
			log.Errorf("error getting log data: %s", err)
			continue
		}
		if cl.consume(fnm, data) {
			got = true
		}
	}
	return got
}

func (cl *containerLogs) fetch(fnm string) ([]byte, error) {
	req, err := http.NewRequest("GET", "https://"+cl.client.APIHost+"/arvados/v1/container_requests/"+cl.crUUID+"/log/"+cl.containerUUID+"/"+fnm, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", cl.tell[fnm]))
	resp, err := cl.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if (resp.StatusCode == http.StatusNotFound && cl.tell[fnm] == 0) ||
		(resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && cl.tell[fnm] > 0) {
		return nil, nil
	} else if resp.StatusCode >= 300 {
		return nil, errors.New(resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// consume relays the complete lines in data, and advances the read
// position of fnm past them. A trailing partial line is fetched again
// next time.
func (cl *containerLogs) consume(fnm string, data []byte) bool {
	got := false
	for {
		eol := bytes.IndexByte(data, '\n')
		if eol < 0 {
			return got
		}
		line := string(data[:eol])
		data = data[eol+1:]
		cl.tell[fnm] += int64(eol + 1)
		if line == "" {
			continue
		}
		got = true
		switch fnm {
		case "stderr.txt":
			cl.endLine()
			log.Print(line)
		case "crunchstat.txt":
			if rss, ok := crunchstatRSS(line); ok {
				fmt.Fprintf(cl.stderr, "%s rss %.3f GB           \r", cl.crUUID, float64(rss)/1e9)
				cl.needNewline = true
			}
		}
	}
}

var crunchstatMemRe = regexp.MustCompile(`mem .* (\d+) rss`)

// crunchstatRSS returns the resident set size reported by a
// crunchstat memory line.
func crunchstatRSS(line string) (int64, bool) {
	m := crunchstatMemRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	rss, err := strconv.ParseInt(m[1], 10, 64)
	return rss, err == nil
}

var collectionInPathRe = regexp.MustCompile(`^(.*/)?([0-9a-f]{32}\+[0-9]+|[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15})(/.*)?$`)

// TranslatePaths rewrites collection paths (by UUID or portable data
// hash) to their mount points in the container, adding mounts as
// needed. Empty paths and "-" are left alone. A "{chrom}" template
// survives translation.
func (runner *arvadosContainerRunner) TranslatePaths(paths ...*string) error {
	if runner.Mounts == nil {
		runner.Mounts = make(map[string]map[string]interface{})
	}
	for _, path := range paths {
		if *path == "" || *path == "-" {
			continue
		}
		m := collectionInPathRe.FindStringSubmatch(*path)
		if m == nil {
			return fmt.Errorf("cannot find uuid in path: %q", *path)
		}
		collID := m[2]
		mountPath := "/mnt/" + collID
		if _, ok := runner.Mounts[mountPath]; !ok {
			mnt := map[string]interface{}{
				"kind": "collection",
			}
			if len(collID) == 27 {
				mnt["uuid"] = collID
			} else {
				mnt["portable_data_hash"] = collID
			}
			runner.Mounts[mountPath] = mnt
		}
		*path = mountPath + m[3]
	}
	return nil
}

var mtxMakeCommandCollection sync.Mutex

// makeCommandCollection stores the running mnv binary in a collection
// in the project, reusing an existing collection with the same
// version and blake2b hash.
func (runner *arvadosContainerRunner) makeCommandCollection() (string, error) {
	mtxMakeCommandCollection.Lock()
	defer mtxMakeCommandCollection.Unlock()
	exe, err := os.ReadFile("/proc/self/exe")
	if err != nil {
		return "", err
	}
	hash := fmt.Sprintf("%x", blake2b.Sum256(exe))
	cname := "mnv " + cmd.Version.String() // must build with "make", not just "go install"
	var existing arvados.CollectionList
	err = runner.Client.RequestAndDecode(&existing, "GET", "arvados/v1/collections", nil, arvados.ListOptions{
		Limit: 1,
		Count: "none",
		Filters: []arvados.Filter{
			{Attr: "name", Operator: "=", Operand: cname},
			{Attr: "owner_uuid", Operator: "=", Operand: runner.ProjectUUID},
			{Attr: "properties.blake2b", Operator: "=", Operand: hash},
		},
	})
	if err != nil {
		return "", err
	}
	if len(existing.Items) > 0 {
		coll := existing.Items[0]
		log.Printf("using mnv binary in existing collection %s (name is %q, hash is %q)", coll.UUID, cname, hash)
		return coll.UUID, nil
	}
	log.Printf("writing mnv binary to new collection %q", cname)
	ac, err := arvadosclient.New(runner.Client)
	if err != nil {
		return "", err
	}
	var coll arvados.Collection
	fs, err := coll.FileSystem(runner.Client, keepclient.New(ac))
	if err != nil {
		return "", err
	}
	f, err := fs.OpenFile("mnv", os.O_CREATE|os.O_WRONLY, 0777)
	if err != nil {
		return "", err
	}
	_, err = f.Write(exe)
	if err != nil {
		f.Close()
		return "", err
	}
	err = f.Close()
	if err != nil {
		return "", err
	}
	mtxt, err := fs.MarshalManifest(".")
	if err != nil {
		return "", err
	}
	err = runner.Client.RequestAndDecode(&coll, "POST", "arvados/v1/collections", nil, map[string]interface{}{
		"collection": map[string]interface{}{
			"owner_uuid":    runner.ProjectUUID,
			"manifest_text": mtxt,
			"name":          cname,
			"properties": map[string]interface{}{
				"blake2b": hash,
			},
		},
	})
	if err != nil {
		return "", err
	}
	log.Printf("stored mnv binary in new collection %s", coll.UUID)
	return coll.UUID, nil
}
