package camelshdf5

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/scigolib/hdf5"
	"go.uber.org/zap"
)

// programName and programVersion are recorded in the process group of
// every entry.
const (
	programName    = "NOMAD CAMELS"
	programVersion = "0.1.0"
)

// Serializer translates one run's document stream into one numbered HDF5
// entry. Documents must arrive in document order: start, descriptor(s),
// event(s)/event page(s), stop. Order violations fail the export.
//
// The serializer is single-threaded and owns its file handle exclusively
// for the duration of one run; the handle is closed when the stop
// document is processed, or by Close on abandoned runs.
type Serializer struct {
	manager *FileManager
	log     *zap.Logger

	prefix      string
	newFileEach bool
	nexusView   bool
	gzip        int

	// Per-run state, reset between runs.
	fw        *hdf5.FileWriter
	entry     string // absolute entry group path, e.g. "/entry_1"
	dataGroup *hdf5.GroupWriter
	start     *RunStart
	startTime float64
	streams   map[string]*stream // by descriptor uid
	names     map[string]string  // stream name -> descriptor uid
}

// stream tracks one measurement stream's data group and channel columns.
type stream struct {
	name    string
	group   string
	handle  *hdf5.GroupWriter
	keys    map[string]ChannelKey
	axes    []string
	signal  string
	columns map[string]*column
	timeCol *column
	elapsed *column
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithFilePrefix sets the first part of generated file names. The string
// may include templates such as "{uid}-" or "{session_name}-" which are
// populated from the start document. The default "{uid}-" is guaranteed
// to be present and unique.
func WithFilePrefix(prefix string) Option {
	return func(s *Serializer) { s.prefix = prefix }
}

// WithNewFileEach controls whether every run gets a fresh file (default)
// or reuses an existing file by appending the next numbered entry.
func WithNewFileEach(enabled bool) Option {
	return func(s *Serializer) { s.newFileEach = enabled }
}

// WithNeXusView enables the NeXus-style linked view: every channel
// dataset is additionally exposed under its instrument device group via a
// soft link, without duplicating storage.
func WithNeXusView(enabled bool) Option {
	return func(s *Serializer) { s.nexusView = enabled }
}

// WithCompression enables gzip compression (level 1-9) for numeric
// channel datasets. Zero disables compression.
func WithCompression(level int) Option {
	return func(s *Serializer) { s.gzip = level }
}

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Serializer) { s.log = log }
}

// WithFileManager replaces the default manager, directing output through
// caller-owned file handling.
func WithFileManager(m *FileManager) Option {
	return func(s *Serializer) { s.manager = m }
}

// NewSerializer creates a serializer placing files inside directory. Use
// an empty string to place files in the current working directory.
func NewSerializer(directory string, opts ...Option) *Serializer {
	s := &Serializer{
		prefix:      "{uid}-",
		newFileEach: true,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.manager == nil {
		s.manager = NewFileManager(directory, s.newFileEach)
	}
	return s
}

// Artifacts maps entry names to the file paths produced so far.
func (s *Serializer) Artifacts() map[string][]string {
	return s.manager.Artifacts()
}

// Receive routes one envelope to the handler for its document type.
func (s *Serializer) Receive(doc Document) error {
	typed, err := doc.decode()
	if err != nil {
		return err
	}
	switch d := typed.(type) {
	case *RunStart:
		return s.Start(d)
	case *EventDescriptor:
		return s.Descriptor(d)
	case *Event:
		return s.EventPage(d.page())
	case *EventPage:
		return s.EventPage(d)
	case *RunStop:
		return s.Stop(d)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDocument, doc.Name)
	}
}

// Start opens the run: it derives the output file, creates the numbered
// entry group and writes all run metadata below it.
func (s *Serializer) Start(doc *RunStart) error {
	if s.fw != nil {
		return fmt.Errorf("%w: start document while a run is open", ErrDocumentOrder)
	}
	if doc.UID == "" {
		stamped := NewRunStart(doc.Time)
		doc.UID = stamped.UID
	}

	fileName := CleanFilename(s.expandPrefix(doc))
	if !strings.HasSuffix(fileName, ".nxs") {
		fileName += ".nxs"
	}

	fw, entryNum, err := s.manager.Open(doc.UID, fileName)
	if err != nil {
		return err
	}
	s.fw = fw
	s.entry = fmt.Sprintf("/entry_%d", entryNum)
	s.start = doc
	s.startTime = doc.Time
	s.streams = make(map[string]*stream)
	s.names = make(map[string]string)

	if err := s.writeEntryMetadata(doc); err != nil {
		s.abort()
		return err
	}

	s.log.Info("run started",
		zap.String("uid", doc.UID),
		zap.String("entry", s.entry),
		zap.String("file", fileName))
	return nil
}

// writeEntryMetadata builds the entry skeleton: exp-description, process,
// user, sample and instrument groups, then the empty data group.
func (s *Serializer) writeEntryMetadata(doc *RunStart) error {
	if _, err := createNXGroup(s.fw, s.entry, "NXentry"); err != nil {
		return err
	}
	if err := writeStringValue(s.fw, s.entry+"/definition", "NXsensor_scan"); err != nil {
		return err
	}
	if err := writeStringValue(s.fw, s.entry+"/start_time", isoTime(doc.Time)); err != nil {
		return err
	}
	if doc.Description != "" {
		if err := writeStringValue(s.fw, s.entry+"/experiment_description", doc.Description); err != nil {
			return err
		}
	}
	if doc.Identifier != "" {
		if err := writeStringValue(s.fw, s.entry+"/experiment_identifier", doc.Identifier); err != nil {
			return err
		}
	}

	proc := s.entry + "/process"
	if _, err := createNXGroup(s.fw, proc, "NXprocess"); err != nil {
		return err
	}
	prog, err := s.fw.CreateDataset(proc+"/program", hdf5.String, []uint64{1},
		hdf5.WithStringSize(uint32(len(programName))+1))
	if err != nil {
		return wrapErr("create program dataset", err)
	}
	if err := prog.Write([]string{programName}); err != nil {
		return wrapErr("write program dataset", err)
	}
	if err := prog.WriteAttribute("program_url", "https://github.com/FAU-LAP/NOMAD-CAMELS"); err != nil {
		return wrapErr("write program_url", err)
	}
	if err := prog.WriteAttribute("version", programVersion); err != nil {
		return wrapErr("write program version", err)
	}
	if len(doc.Versions) > 0 {
		if _, err := s.fw.CreateGroup(proc + "/versions"); err != nil {
			return wrapErr("create versions group", err)
		}
		if err := writeMetadataTree(s.fw, proc+"/versions", doc.Versions); err != nil {
			return err
		}
	}

	if _, err := createNXGroup(s.fw, s.entry+"/user", "NXuser"); err != nil {
		return err
	}
	if err := writeMetadataTree(s.fw, s.entry+"/user", doc.User); err != nil {
		return err
	}
	if _, err := createNXGroup(s.fw, s.entry+"/sample", "NXsample"); err != nil {
		return err
	}
	if err := writeMetadataTree(s.fw, s.entry+"/sample", doc.Sample); err != nil {
		return err
	}

	if err := s.writeInstrument(doc); err != nil {
		return err
	}
	if len(doc.Extra) > 0 {
		if err := writeMetadataTree(s.fw, s.entry, doc.Extra); err != nil {
			return err
		}
	}

	data, err := createNXGroup(s.fw, s.entry+"/data", "NXdata")
	if err != nil {
		return err
	}
	s.dataGroup = data
	return nil
}

// writeInstrument writes the instrument group with devices split into
// sensors and outputs subgroups.
func (s *Serializer) writeInstrument(doc *RunStart) error {
	instr := s.entry + "/instrument"
	if _, err := createNXGroup(s.fw, instr, "NXinstrument"); err != nil {
		return err
	}
	if len(doc.Devices) == 0 {
		return nil
	}
	if _, err := s.fw.CreateGroup(instr + "/sensors"); err != nil {
		return wrapErr("create sensors group", err)
	}
	if _, err := s.fw.CreateGroup(instr + "/outputs"); err != nil {
		return wrapErr("create outputs group", err)
	}

	names := make([]string, 0, len(doc.Devices))
	for name := range doc.Devices {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dev := doc.Devices[name]
		devPath := instr + "/" + deviceCategory(dev.Kind) + "/" + sanitizeSegment(name)
		if _, err := createNXGroup(s.fw, devPath, "NXsensor"); err != nil {
			return err
		}
		model := dev.IDN
		if model == "" {
			model = dev.ClassName
		}
		if err := writeStringValue(s.fw, devPath+"/model", model); err != nil {
			return err
		}
		if err := writeStringValue(s.fw, devPath+"/name", dev.ClassName); err != nil {
			return err
		}
		if err := writeStringValue(s.fw, devPath+"/short_name", name); err != nil {
			return err
		}
		if len(dev.Settings) > 0 {
			if _, err := s.fw.CreateGroup(devPath + "/settings"); err != nil {
				return wrapErr("create settings group", err)
			}
			if err := writeMetadataTree(s.fw, devPath+"/settings", dev.Settings); err != nil {
				return err
			}
		}
	}
	return nil
}

// Descriptor registers a measurement stream. The primary stream writes
// directly into the data group, others get a named subgroup.
func (s *Serializer) Descriptor(doc *EventDescriptor) error {
	if s.fw == nil {
		return fmt.Errorf("%w: descriptor before start", ErrDocumentOrder)
	}
	if strings.Contains(doc.StreamName, "_fits_readying_") {
		return nil // host-internal bookkeeping stream, never exported
	}
	if _, taken := s.names[doc.StreamName]; taken {
		return fmt.Errorf("%w: %q", ErrStreamExists, doc.StreamName)
	}

	group := s.entry + "/data"
	handle := s.dataGroup
	if doc.StreamName != "primary" {
		group += "/" + sanitizeSegment(doc.StreamName)
		g, err := createNXGroup(s.fw, group, "NXdata")
		if err != nil {
			return err
		}
		handle = g
	}

	st := &stream{
		name:    doc.StreamName,
		group:   group,
		handle:  handle,
		keys:    doc.DataKeys,
		axes:    doc.Axes,
		signal:  doc.Signal,
		columns: make(map[string]*column),
		timeCol: newColumn(group+"/time", ChannelKey{}, 0),
		elapsed: newColumn(group+"/ElapsedTime", ChannelKey{Units: "s"}, s.gzip),
	}
	st.timeCol.kind = kindString
	st.elapsed.kind = kindFloat
	s.streams[doc.UID] = st
	s.names[doc.StreamName] = doc.UID

	s.log.Debug("stream declared",
		zap.String("stream", doc.StreamName),
		zap.Int("channels", len(doc.DataKeys)))
	return nil
}

// Event appends a single measured row, converting it to a one-row page.
func (s *Serializer) Event(e *Event) error {
	return s.EventPage(e.page())
}

// EventPage appends one page of measured rows. Pages referencing unknown
// descriptors are ignored; channels with empty value slices are skipped
// without aborting the run.
func (s *Serializer) EventPage(p *EventPage) error {
	if s.fw == nil {
		return fmt.Errorf("%w: event before start", ErrDocumentOrder)
	}
	st := s.streams[p.Descriptor]
	if st == nil {
		s.log.Debug("event page for unknown descriptor dropped",
			zap.String("descriptor", p.Descriptor))
		return nil
	}
	if len(p.Time) == 0 {
		return nil
	}

	times := make([]any, len(p.Time))
	elapsed := make([]any, len(p.Time))
	for i, t := range p.Time {
		times[i] = isoTime(t)
		elapsed[i] = t - s.startTime
	}
	if err := st.timeCol.append(s.fw, times); err != nil {
		return err
	}
	if err := st.elapsed.append(s.fw, elapsed); err != nil {
		return err
	}

	chans := make([]string, 0, len(p.Data))
	for ch := range p.Data {
		chans = append(chans, ch)
	}
	sort.Strings(chans)

	for _, ch := range chans {
		col := st.columns[ch]
		if col == nil {
			col = newColumn(st.group+"/"+sanitizeSegment(ch), st.keys[ch], s.gzip)
			st.columns[ch] = col
		}
		if err := col.append(s.fw, p.Data[ch]); err != nil {
			if isEmptyData(err) {
				s.log.Debug("empty column skipped",
					zap.String("stream", st.name), zap.String("channel", ch))
				continue
			}
			return err
		}
	}
	return nil
}

// Stop closes the run: it writes the end time, materialises buffered
// columns, optionally builds the NeXus view and closes the file. The
// file is closed even when finishing fails.
func (s *Serializer) Stop(doc *RunStop) error {
	if s.fw == nil {
		return fmt.Errorf("%w: stop before start", ErrDocumentOrder)
	}

	err := s.finishRun(doc)
	closeErr := s.fw.Close()
	s.manager.Release(s.fw)
	s.reset()

	if err != nil {
		return err
	}
	if closeErr != nil {
		return wrapErr("close output file", closeErr)
	}
	s.log.Info("run stopped", zap.String("uid", doc.RunStart))
	return nil
}

func (s *Serializer) finishRun(doc *RunStop) error {
	endTime := doc.Time
	if endTime < s.startTime {
		s.log.Warn("stop time precedes start time, clamping",
			zap.Float64("start", s.startTime), zap.Float64("stop", doc.Time))
		endTime = s.startTime
	}
	if err := writeStringValue(s.fw, s.entry+"/end_time", isoTime(endTime)); err != nil {
		return err
	}
	if doc.ExitStatus != "" {
		if err := writeStringValue(s.fw, s.entry+"/exit_status", doc.ExitStatus); err != nil {
			return err
		}
	}

	streamNames := make([]string, 0, len(s.names))
	for name := range s.names {
		streamNames = append(streamNames, name)
	}
	sort.Strings(streamNames)

	for _, name := range streamNames {
		st := s.streams[s.names[name]]
		if err := st.timeCol.finish(s.fw); err != nil {
			return err
		}
		if err := st.elapsed.finish(s.fw); err != nil {
			return err
		}
		cols := make([]string, 0, len(st.columns))
		for ch := range st.columns {
			cols = append(cols, ch)
		}
		sort.Strings(cols)
		for _, ch := range cols {
			if err := st.columns[ch].finish(s.fw); err != nil {
				return err
			}
		}
		if err := writeStreamHints(st); err != nil {
			return err
		}
	}

	if s.nexusView {
		if err := buildNeXusView(s.fw, s.start, s.streams); err != nil {
			return err
		}
	}
	return nil
}

// writeStreamHints stamps plotting hints from the descriptor onto the
// stream's data group.
func writeStreamHints(st *stream) error {
	if st.handle == nil {
		return nil
	}
	if len(st.axes) > 0 {
		if err := st.handle.WriteAttribute("axes", strings.Join(st.axes, ",")); err != nil {
			return wrapErr("write axes hint on "+st.group, err)
		}
	}
	if st.signal != "" {
		if err := st.handle.WriteAttribute("signal", st.signal); err != nil {
			return wrapErr("write signal hint on "+st.group, err)
		}
	}
	return nil
}

// Close releases all resources. Runs abandoned without a stop document
// are closed as-is.
func (s *Serializer) Close() error {
	if s.fw != nil {
		s.abort()
	}
	return s.manager.Close()
}

func (s *Serializer) abort() {
	_ = s.fw.Close()
	s.manager.Release(s.fw)
	s.reset()
}

func (s *Serializer) reset() {
	s.fw = nil
	s.entry = ""
	s.dataGroup = nil
	s.start = nil
	s.startTime = 0
	s.streams = nil
	s.names = nil
}

// expandPrefix fills the file prefix templates from the start document.
func (s *Serializer) expandPrefix(doc *RunStart) string {
	r := strings.NewReplacer(
		"{uid}", doc.UID,
		"{session_name}", doc.SessionName,
		"{plan_name}", doc.PlanName,
		"{identifier}", doc.Identifier,
	)
	return r.Replace(s.prefix)
}

func deviceCategory(kind DeviceKind) string {
	if kind == DeviceOutput {
		return "outputs"
	}
	return "sensors"
}

func isEmptyData(err error) bool {
	return errors.Is(err, ErrEmptyData)
}
