package nsd

import "strings"

// ParseResolvedFullName implements the name-split step of §4.4's legacy
// two-phase resolve: separator scan honoring \. and \\ escapes, producing
// the unescaped instance name and the remaining type+domain portion with
// the trailing ".local." stripped.
func ParseResolvedFullName(fullName string, log func(string, ...any)) (instanceName, serviceType string, ok bool) {
	label, rest, found := splitFirstUnescapedLabel(fullName)
	if !found {
		return "", "", false
	}
	instanceName = Unescape(label, log)

	rest = strings.TrimSuffix(rest, ".")
	rest = strings.TrimSuffix(rest, ".local")
	rest = strings.TrimSuffix(rest, ".local.")
	return instanceName, rest, true
}

// BuildResolvedServiceScratch builds the resolvedService scratchpad value
// from a SERVICE_RESOLVED event, step 2 of §4.4's two-phase resolve.
func BuildResolvedServiceScratch(ev LegacyEvent, log func(string, ...any)) (ServiceInfo, bool) {
	instanceName, serviceType, ok := ParseResolvedFullName(ev.FullName, log)
	if !ok {
		return ServiceInfo{}, false
	}
	return ServiceInfo{
		InstanceName: instanceName,
		ServiceType:  serviceType,
		Port:         ev.Port,
		TXT:          ev.TXT,
	}, true
}

// ApplyGetAddrSuccess implements step 3 of §4.4: if netId != UNSET and the
// address is non-empty, attach host/network to the scratch and report
// success; otherwise report failure. Either way the caller stops/removes
// tx2 and clears the scratch.
func ApplyGetAddrSuccess(scratch *ServiceInfo, ev LegacyEvent, ifaceIndex int) bool {
	if ev.NetID == NetworkUnset || ev.Address == "" {
		return false
	}
	scratch.Host = ev.Address
	scratch.CallbackNetwork = AttributeCallbackNetwork(ev.NetID, ifaceIndex)
	return true
}
