// Package tripdata describes the NYC TLC trip record files tlcfetch knows
// how to fetch.
//
// A [SourceLocation] is one (taxi type, year, month) coordinate. The set of
// locations for a run is the cross product of configured types, years and
// months, generated in a fixed nested order:
//
//	for each type
//	    for each year
//	        for each month
//
// # Naming
//
//	<base>/<type>/<type>_tripdata_<YYYY>-<MM>.csv.gz
//
// The basename doubles as the local filename and the object key on upload.
package tripdata
