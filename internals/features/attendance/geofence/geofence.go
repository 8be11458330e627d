// Package geofence menghitung jarak great-circle antara lokasi scan
// dan lokasi referensi kelas untuk deteksi "proxy attendance".
package geofence

import "math"

const earthRadiusM = 6371000.0

// Status hasil evaluasi geofence. NotConfigured HARUS dibedakan dari
// Inside/Outside: subject tanpa lokasi referensi tidak boleh dievaluasi
// terhadap (0,0) - itu akan memflag semua lokasi nyata sebagai proxy.
type Status string

const (
	StatusInside        Status = "inside"
	StatusOutside       Status = "outside"
	StatusNotConfigured Status = "not_configured"
)

// Reference adalah titik acuan kelas. Nil = tidak dikonfigurasi.
type Reference struct {
	Lat     float64
	Lon     float64
	RadiusM float64
}

// Outcome selalu membawa jarak untuk audit; 0 hanya bila evaluasi
// memang di-skip (NotConfigured).
type Outcome struct {
	Status    Status
	DistanceM float64
}

// IsProxySuspected: hanya Outside yang dihitung proxy.
func (o Outcome) IsProxySuspected() bool { return o.Status == StatusOutside }

// Check mengevaluasi lokasi scan terhadap referensi.
func Check(ref *Reference, lat, lon float64) Outcome {
	if ref == nil {
		return Outcome{Status: StatusNotConfigured, DistanceM: 0}
	}

	d := Distance(ref.Lat, ref.Lon, lat, lon)
	if d > ref.RadiusM {
		return Outcome{Status: StatusOutside, DistanceM: d}
	}
	return Outcome{Status: StatusInside, DistanceM: d}
}

// Distance menghitung jarak haversine (meter) antara dua koordinat.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
