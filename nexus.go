package camelshdf5

import (
	"sort"
	"strings"

	"github.com/scigolib/hdf5"
)

// buildNeXusView links every written channel dataset into the group of
// the instrument device it came from. The link is a soft link, so the
// stored data appears under the NeXus-style instrument path without
// being duplicated.
//
// Channels are attributed to devices through the descriptor's
// object_name field; channels without one, or naming a device the start
// document does not declare, are left unlinked.
func buildNeXusView(fw *hdf5.FileWriter, start *RunStart, streams map[string]*stream) error {
	uids := make([]string, 0, len(streams))
	for uid := range streams {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		st := streams[uid]
		chans := make([]string, 0, len(st.columns))
		for ch := range st.columns {
			chans = append(chans, ch)
		}
		sort.Strings(chans)

		for _, ch := range chans {
			col := st.columns[ch]
			if col.ds == nil || col.key.Device == "" {
				continue
			}
			dev, known := start.Devices[col.key.Device]
			if !known {
				continue
			}
			linkPath := entryOf(st.group) + "/instrument/" + deviceCategory(dev.Kind) +
				"/" + sanitizeSegment(col.key.Device) + "/" + sanitizeSegment(ch)
			if err := fw.CreateSoftLink(linkPath, col.path); err != nil {
				return wrapErr("link "+linkPath, err)
			}
		}
	}
	return nil
}

// entryOf strips a stream data group path back to its entry group.
func entryOf(group string) string {
	idx := strings.Index(group[1:], "/")
	if idx < 0 {
		return group
	}
	return group[:idx+1]
}
