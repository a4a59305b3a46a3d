package app

import (
	"fmt"
	"syscall"
)

// minChartSpace is the free space below which saved pothole maps are at
// risk. A map is well under 100 KB; this leaves room for a long drive.
const minChartSpace = 16 << 20

// DiskUsage describes the filesystem holding the data root.
type DiskUsage struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

func diskUsage(path string) (*DiskUsage, error) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}
	bs := uint64(fs.Bsize)
	du := &DiskUsage{
		TotalBytes:     fs.Blocks * bs,
		UsedBytes:      (fs.Blocks - fs.Bfree) * bs,
		AvailableBytes: fs.Bavail * bs, // what an unprivileged daemon can still write
	}
	if du.TotalBytes > 0 {
		du.UsedPercent = float64(du.UsedBytes) / float64(du.TotalBytes) * 100
	}
	return du, nil
}

// tooFullForCharts reports whether saving another chart could fail.
func (d *DiskUsage) tooFullForCharts() bool {
	return d.AvailableBytes < minChartSpace
}
