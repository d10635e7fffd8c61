package shelfutils

import "math"

type Statistics struct {
	ShelfCount      int
	AllocationCount int
	BinArea         int
	AllocationArea  int
}

func (s *Statistics) Clear() {
	s.ShelfCount = 0
	s.AllocationCount = 0
	s.BinArea = 0
	s.AllocationArea = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ShelfCount += other.ShelfCount
	s.AllocationCount += other.AllocationCount
	s.BinArea += other.BinArea
	s.AllocationArea += other.AllocationArea
}

type DetailedStatistics struct {
	Statistics
	WasteArea          int
	UnusedRangeCount   int
	AllocationAreaMin  int
	AllocationAreaMax  int
	UnusedRangeAreaMin int
	UnusedRangeAreaMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.WasteArea = 0
	s.UnusedRangeCount = 0
	s.AllocationAreaMin = math.MaxInt
	s.AllocationAreaMax = 0
	s.UnusedRangeAreaMin = math.MaxInt
	s.UnusedRangeAreaMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(area int) {
	s.UnusedRangeCount++

	if area < s.UnusedRangeAreaMin {
		s.UnusedRangeAreaMin = area
	}

	if area > s.UnusedRangeAreaMax {
		s.UnusedRangeAreaMax = area
	}
}

func (s *DetailedStatistics) AddAllocation(area int) {
	s.AllocationCount++
	s.AllocationArea += area

	if area < s.AllocationAreaMin {
		s.AllocationAreaMin = area
	}

	if area > s.AllocationAreaMax {
		s.AllocationAreaMax = area
	}
}

func (s *DetailedStatistics) AddWaste(area int) {
	s.WasteArea += area
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.WasteArea += other.WasteArea
	s.UnusedRangeCount += other.UnusedRangeCount

	if other.UnusedRangeAreaMin < s.UnusedRangeAreaMin {
		s.UnusedRangeAreaMin = other.UnusedRangeAreaMin
	}

	if other.UnusedRangeAreaMax > s.UnusedRangeAreaMax {
		s.UnusedRangeAreaMax = other.UnusedRangeAreaMax
	}

	if other.AllocationAreaMin < s.AllocationAreaMin {
		s.AllocationAreaMin = other.AllocationAreaMin
	}

	if other.AllocationAreaMax > s.AllocationAreaMax {
		s.AllocationAreaMax = other.AllocationAreaMax
	}
}
