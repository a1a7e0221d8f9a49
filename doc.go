// Package camelshdf5 serialises NOMAD CAMELS run document streams into
// HDF5 files whose layout loosely follows the NeXus convention.
//
// A run is described by an ordered stream of documents: one start document
// with the run metadata (session, user, sample, instrument devices), one or
// more descriptors declaring measurement streams and their channels, any
// number of event pages carrying measured values, and one stop document.
// The Serializer consumes these in arrival order and writes one numbered
// entry group per run, with metadata under descriptive subgroups
// (exp-description, sample, user, instrument/sensors, instrument/outputs)
// and measured arrays as per-channel datasets under the data group.
//
// All HDF5 I/O goes through github.com/scigolib/hdf5; this package only
// maps documents onto groups, attributes and datasets.
package camelshdf5
