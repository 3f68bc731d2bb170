package rule

import "lmake/internal/crc"

// computeRuleCrc derives the three-tier RuleCrc per spec §4.2 step 5:
//
//	match_crc hashes special+stems+targets+static dep names+job_name
//	cmd_crc   additionally hashes link-support config, OS info, sub-repo,
//	          source-dir manifest hash, matches, force flag, cmd f-string
//	rsrcs_crc additionally hashes resources/env
//
// Each tier folds in everything the previous tier did, so two rules
// differing only in a resources expression share match_crc and cmd_crc but
// diverge in rsrcs_crc (spec §8 property 4, "RuleCrc stability").
func computeRuleCrc(d Desc, r *Rule) RuleCrc {
	var stemParts []crc.Digest
	for _, s := range r.Stems {
		stemParts = append(stemParts, crc.OfString(s.Name), crc.OfString(s.Regex))
	}
	var targetParts []crc.Digest
	for _, m := range r.Matches {
		targetParts = append(targetParts, crc.OfString(string(m.Pattern.Bytes)), crc.Of([]byte{byte(m.Tag), byte(m.Flags)}))
	}
	var depNameParts []crc.Digest
	for _, dep := range r.StaticDeps {
		depNameParts = append(depNameParts, crc.OfString(dep.Name))
	}

	matchCrc := crc.Reduce(append(append(append(
		[]crc.Digest{crc.OfString("special"), crc.OfString(d.Name)},
		stemParts...), targetParts...), append(depNameParts, crc.OfString(d.JobName))...)...)

	cmdInputs := []crc.Digest{
		matchCrc,
		crc.Of([]byte{byte(r.LinkSupport)}),
		crc.OfString(d.OSInfo),
		crc.OfString(d.SubRepo),
		crc.OfString(d.SourceDirManifest),
		crc.Of([]byte{boolByte(d.Force)}),
	}
	cmdInputs = append(cmdInputs, targetParts...)
	cmdInputs = append(cmdInputs, attrCrc(r.Cmd, r))
	cmdCrc := crc.Reduce(cmdInputs...)

	rsrcsCrc := crc.Reduce(cmdCrc, attrCrc(r.Resources, r), attrCrc(r.Env, r))

	return RuleCrc{Match: matchCrc, Cmd: cmdCrc, Rsrcs: rsrcsCrc}
}

func attrCrc(a Attr, r *Rule) crc.Digest {
	if a.Kind == AttrDynamic {
		return crc.Reduce(crc.OfString("dyn"), crc.OfString(r.Callables[a.CallableIdx].Source))
	}
	return crc.Reduce(crc.OfString("static"), crc.OfString(string(a.Static.Bytes)))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
