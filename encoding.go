// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Built-in font encodings and the glyph-name table used to resolve
// /Differences arrays.

package zpdf

// nameToRune maps Adobe glyph names to Unicode code points. It covers
// the glyphs produced by the standard Latin text encodings; unknown
// names resolve to zero and the caller keeps the raw code.
var nameToRune = map[string]rune{
	"A": 'A', "B": 'B', "C": 'C', "D": 'D', "E": 'E', "F": 'F', "G": 'G',
	"H": 'H', "I": 'I', "J": 'J', "K": 'K', "L": 'L', "M": 'M', "N": 'N',
	"O": 'O', "P": 'P', "Q": 'Q', "R": 'R', "S": 'S', "T": 'T', "U": 'U',
	"V": 'V', "W": 'W', "X": 'X', "Y": 'Y', "Z": 'Z',
	"a": 'a', "b": 'b', "c": 'c', "d": 'd', "e": 'e', "f": 'f', "g": 'g',
	"h": 'h', "i": 'i', "j": 'j', "k": 'k', "l": 'l', "m": 'm', "n": 'n',
	"o": 'o', "p": 'p', "q": 'q', "r": 'r', "s": 's', "t": 't', "u": 'u',
	"v": 'v', "w": 'w', "x": 'x', "y": 'y', "z": 'z',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@',
	"bracketleft": '[', "backslash": '\\', "bracketright": ']',
	"asciicircum": '^', "underscore": '_', "grave": '`',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',

	"Aacute": 0x00C1, "Agrave": 0x00C0, "Acircumflex": 0x00C2, "Atilde": 0x00C3,
	"Adieresis": 0x00C4, "Aring": 0x00C5, "AE": 0x00C6, "Ccedilla": 0x00C7,
	"Eacute": 0x00C9, "Egrave": 0x00C8, "Ecircumflex": 0x00CA, "Edieresis": 0x00CB,
	"Iacute": 0x00CD, "Igrave": 0x00CC, "Icircumflex": 0x00CE, "Idieresis": 0x00CF,
	"Eth": 0x00D0, "Ntilde": 0x00D1, "Oacute": 0x00D3, "Ograve": 0x00D2,
	"Ocircumflex": 0x00D4, "Otilde": 0x00D5, "Odieresis": 0x00D6, "multiply": 0x00D7,
	"Oslash": 0x00D8, "Uacute": 0x00DA, "Ugrave": 0x00D9, "Ucircumflex": 0x00DB,
	"Udieresis": 0x00DC, "Yacute": 0x00DD, "Thorn": 0x00DE, "germandbls": 0x00DF,
	"aacute": 0x00E1, "agrave": 0x00E0, "acircumflex": 0x00E2, "atilde": 0x00E3,
	"adieresis": 0x00E4, "aring": 0x00E5, "ae": 0x00E6, "ccedilla": 0x00E7,
	"eacute": 0x00E9, "egrave": 0x00E8, "ecircumflex": 0x00EA, "edieresis": 0x00EB,
	"iacute": 0x00ED, "igrave": 0x00EC, "icircumflex": 0x00EE, "idieresis": 0x00EF,
	"eth": 0x00F0, "ntilde": 0x00F1, "oacute": 0x00F3, "ograve": 0x00F2,
	"ocircumflex": 0x00F4, "otilde": 0x00F5, "odieresis": 0x00F6, "divide": 0x00F7,
	"oslash": 0x00F8, "uacute": 0x00FA, "ugrave": 0x00F9, "ucircumflex": 0x00FB,
	"udieresis": 0x00FC, "yacute": 0x00FD, "thorn": 0x00FE, "ydieresis": 0x00FF,

	"endash": 0x2013, "emdash": 0x2014, "quotesinglbase": 0x201A,
	"quotedblbase": 0x201E, "quotedblleft": 0x201C, "quotedblright": 0x201D,
	"quoteleft": 0x2018, "quoteright": 0x2019, "ellipsis": 0x2026,
	"dagger": 0x2020, "daggerdbl": 0x2021, "bullet": 0x2022,
	"perthousand": 0x2030, "guilsinglleft": 0x2039, "guilsinglright": 0x203A,
	"guillemotleft": 0x00AB, "guillemotright": 0x00BB,
	"trademark": 0x2122, "fi": 0xFB01, "fl": 0xFB02,
	"florin": 0x0192, "fraction": 0x2044, "minus": 0x2212,
	"Euro": 0x20AC, "currency": 0x00A4, "cent": 0x00A2, "sterling": 0x00A3,
	"yen": 0x00A5, "brokenbar": 0x00A6, "section": 0x00A7,
	"copyright": 0x00A9, "registered": 0x00AE, "logicalnot": 0x00AC,
	"degree": 0x00B0, "plusminus": 0x00B1, "mu": 0x00B5,
	"paragraph": 0x00B6, "periodcentered": 0x00B7,
	"cedilla": 0x00B8, "ordmasculine": 0x00BA, "ordfeminine": 0x00AA,
	"onequarter": 0x00BC, "onehalf": 0x00BD, "threequarters": 0x00BE,
	"onesuperior": 0x00B9, "twosuperior": 0x00B2, "threesuperior": 0x00B3,
	"exclamdown": 0x00A1, "questiondown": 0x00BF,
	"nbspace": 0x00A0, "softhyphen": 0x00AD,
	"OE": 0x0152, "oe": 0x0153, "Scaron": 0x0160, "scaron": 0x0161,
	"Zcaron": 0x017D, "zcaron": 0x017E, "Ydieresis": 0x0178,
	"circumflex": 0x02C6, "tilde": 0x02DC, "macron": 0x00AF,
	"breve": 0x02D8, "dotaccent": 0x02D9, "dieresis": 0x00A8, "acute": 0x00B4,
	"ring": 0x02DA, "hungarumlaut": 0x02DD, "ogonek": 0x02DB, "caron": 0x02C7,
	"Lslash": 0x0141, "lslash": 0x0142, "dotlessi": 0x0131,
}

// asciiLower fills codes 0-127 with their ASCII identity mapping.
func asciiLower() (t [256]rune) {
	for i := 0; i < 128; i++ {
		t[i] = rune(i)
	}
	return t
}

func withUpper(upper [128]rune) [256]rune {
	t := asciiLower()
	for i, r := range upper {
		if r != 0 {
			t[128+i] = r
		}
	}
	return t
}

// winAnsiEncoding is WinAnsiEncoding (Windows code page 1252).
var winAnsiEncoding = withUpper([128]rune{
	0x20AC, 0, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0, 0x017D, 0,
	0, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0, 0x017E, 0x0178,
	0x00A0, 0x00A1, 0x00A2, 0x00A3, 0x00A4, 0x00A5, 0x00A6, 0x00A7,
	0x00A8, 0x00A9, 0x00AA, 0x00AB, 0x00AC, 0x00AD, 0x00AE, 0x00AF,
	0x00B0, 0x00B1, 0x00B2, 0x00B3, 0x00B4, 0x00B5, 0x00B6, 0x00B7,
	0x00B8, 0x00B9, 0x00BA, 0x00BB, 0x00BC, 0x00BD, 0x00BE, 0x00BF,
	0x00C0, 0x00C1, 0x00C2, 0x00C3, 0x00C4, 0x00C5, 0x00C6, 0x00C7,
	0x00C8, 0x00C9, 0x00CA, 0x00CB, 0x00CC, 0x00CD, 0x00CE, 0x00CF,
	0x00D0, 0x00D1, 0x00D2, 0x00D3, 0x00D4, 0x00D5, 0x00D6, 0x00D7,
	0x00D8, 0x00D9, 0x00DA, 0x00DB, 0x00DC, 0x00DD, 0x00DE, 0x00DF,
	0x00E0, 0x00E1, 0x00E2, 0x00E3, 0x00E4, 0x00E5, 0x00E6, 0x00E7,
	0x00E8, 0x00E9, 0x00EA, 0x00EB, 0x00EC, 0x00ED, 0x00EE, 0x00EF,
	0x00F0, 0x00F1, 0x00F2, 0x00F3, 0x00F4, 0x00F5, 0x00F6, 0x00F7,
	0x00F8, 0x00F9, 0x00FA, 0x00FB, 0x00FC, 0x00FD, 0x00FE, 0x00FF,
})

// macRomanEncoding is MacRomanEncoding.
var macRomanEncoding = withUpper([128]rune{
	0x00C4, 0x00C5, 0x00C7, 0x00C9, 0x00D1, 0x00D6, 0x00DC, 0x00E1,
	0x00E0, 0x00E2, 0x00E4, 0x00E5, 0x00E7, 0x00E9, 0x00E8, 0x00EA,
	0x00EB, 0x00ED, 0x00EC, 0x00EE, 0x00EF, 0x00F1, 0x00F3, 0x00F2,
	0x00F4, 0x00F6, 0x00FA, 0x00F9, 0x00FB, 0x00FC, 0x2020, 0x00B0,
	0x00A2, 0x00A3, 0x00A7, 0x2022, 0x00B6, 0x00DF, 0x00AE, 0x00A9,
	0x2122, 0x00B4, 0x00A8, 0x2260, 0x00C6, 0x00D8, 0x221E, 0x00B1,
	0x2264, 0x2265, 0x00A5, 0x00B5, 0x2202, 0x2211, 0x220F, 0x03C0,
	0x222B, 0x00AA, 0x00BA, 0x03A9, 0x00E6, 0x00F8, 0x00BF, 0x00A1,
	0x00AC, 0x221A, 0x0192, 0x2248, 0x2206, 0x00AB, 0x00BB, 0x2026,
	0x00A0, 0x00C0, 0x00C3, 0x00D5, 0x0152, 0x0153, 0x2013, 0x2014,
	0x201C, 0x201D, 0x2018, 0x2019, 0x00F7, 0x25CA, 0x00FF, 0x0178,
	0x2044, 0x20AC, 0x2039, 0x203A, 0xFB01, 0xFB02, 0x2021, 0x00B7,
	0x201A, 0x201E, 0x2030, 0x00C2, 0x00CA, 0x00C1, 0x00CB, 0x00C8,
	0x00CD, 0x00CE, 0x00CF, 0x00CC, 0x00D3, 0x00D4, 0xF8FF, 0x00D2,
	0x00DA, 0x00DB, 0x00D9, 0x0131, 0x02C6, 0x02DC, 0x00AF, 0x02D8,
	0x02D9, 0x02DA, 0x00B8, 0x02DD, 0x02DB, 0x02C7, 0, 0,
})

// standardEncoding is PostScript StandardEncoding, the default for
// Type1 fonts with no /Encoding entry.
var standardEncoding = withUpper([128]rune{
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0x00A1, 0x00A2, 0x00A3, 0x2044, 0x00A5, 0x0192, 0x00A7,
	0x00A4, 0x0027, 0x201C, 0x00AB, 0x2039, 0x203A, 0xFB01, 0xFB02,
	0, 0x2013, 0x2020, 0x2021, 0x00B7, 0, 0x00B6, 0x2022,
	0x201A, 0x201E, 0x201D, 0x00BB, 0x2026, 0x2030, 0, 0x00BF,
	0, 0x0060, 0x00B4, 0x02C6, 0x02DC, 0x00AF, 0x02D8, 0x02D9,
	0x00A8, 0, 0x02DA, 0x00B8, 0, 0x02DD, 0x02DB, 0x02C7,
	0x2014, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0x00C6, 0, 0x00AA, 0, 0, 0, 0,
	0x0141, 0x00D8, 0x0152, 0x00BA, 0, 0, 0, 0,
	0, 0x00E6, 0, 0, 0, 0x0131, 0, 0,
	0x0142, 0x00F8, 0x0153, 0x00DF, 0, 0, 0, 0,
})
