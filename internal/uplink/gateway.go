package uplink

// WeakRSSI is the RSSI (dBm) below which SNR is preferred for picking
// the best gateway.
const WeakRSSI = -80

// BestGateway picks the gateway that best heard the uplink.
//
// If one gateway has both the strongest RSSI and the best SNR it wins.
// Otherwise the strongest-RSSI gateway is used unless its RSSI is below
// WeakRSSI, in which case the best-SNR gateway is used. Earlier gateways win
// ties. Readings at or below -1000 never win; when every gateway reports
// such values the first gateway is returned.
func BestGateway(gws []Gateway) (Gateway, error) {
	if len(gws) == 0 {
		return Gateway{}, ErrNoGateways
	}

	rssi, snr := -1000.0, -1000.0
	bestRSSI, bestSNR := 0, 0
	for i, g := range gws {
		if g.RSSI > rssi {
			rssi = g.RSSI
			bestRSSI = i
		}
		if g.SNR > snr {
			snr = g.SNR
			bestSNR = i
		}
	}

	if bestRSSI == bestSNR {
		return gws[bestRSSI], nil
	}
	if rssi < WeakRSSI {
		return gws[bestSNR], nil
	}
	return gws[bestRSSI], nil
}
